package dispatch

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"vouchbot/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

const errorMessage = "There was an error while executing this command!"

// Dispatcher routes gateway events to the command handlers in AppState.
type Dispatcher struct {
	as *utils.AppState

	// guilds announced by Ready, their GuildCreate events are lazy-load replays
	readyGuilds map[string]struct{}
	mu          sync.Mutex
}

func New(as *utils.AppState) *Dispatcher {
	return &Dispatcher{
		as:          as,
		readyGuilds: make(map[string]struct{}),
	}
}

// Attach subscribes the dispatcher to dg's events.
func (d *Dispatcher) Attach(dg *discordgo.Session) {
	// warnings are dropped by discordgo below this level
	dg.LogLevel = discordgo.LogWarning
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.OnReady(s, r)
	})
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		d.OnGuildCreate(s, g)
	})
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		d.OnInteractionCreate(s, i)
	})
}

// #region - registration

// RegisterCommands replaces the command set of guildID, or the global one
// when guildID is empty.
func RegisterCommands(as *utils.AppState, s utils.Session, guildID string) error {
	cmds := as.AppCmdInfos()
	slog.Info("registering commands", "count", len(cmds), "guild_id", guildID)

	registered, err := s.ApplicationCommandBulkOverwrite(as.Config.ClientID, guildID, cmds)
	if err != nil {
		return fmt.Errorf("RegisterCommands: guild %q: %w", guildID, err)
	}

	if guildID == "" {
		slog.Info("registered global commands, they can take up to an hour to show up", "count", len(registered))
	} else {
		slog.Info("registered guild commands", "count", len(registered), "guild_id", guildID)
	}
	return nil
}

func (d *Dispatcher) register(s utils.Session, guildID string) {
	if err := RegisterCommands(d.as, s, guildID); err != nil {
		slog.Error("can't register commands", "error", err)
	}
}

// #endregion

// SetPresence applies botStatus. Custom statuses carry their text in State.
func SetPresence(s utils.Session, status utils.BotStatus) error {
	if !status.Enabled() {
		return nil
	}
	activityType, err := status.ActivityType()
	if err != nil {
		return fmt.Errorf("SetPresence: %w", err)
	}

	activity := &discordgo.Activity{
		Name: status.Activity,
		Type: activityType,
	}
	if activityType == discordgo.ActivityTypeCustom {
		activity.Name = "Custom Status"
		activity.State = status.Activity
	}

	if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{activity},
		Status:     string(discordgo.StatusOnline),
	}); err != nil {
		return fmt.Errorf("SetPresence: %w", err)
	}
	return nil
}

func (d *Dispatcher) OnReady(s utils.Session, r *discordgo.Ready) {
	defer recoverWarn("ready")

	d.mu.Lock()
	for _, g := range r.Guilds {
		d.readyGuilds[g.ID] = struct{}{}
	}
	d.mu.Unlock()

	if r.User != nil {
		slog.Info("logged in", "user", r.User.String(), "guilds", len(r.Guilds))
	}

	if err := SetPresence(s, d.as.Config.BotStatus); err != nil {
		slog.Warn("can't set presence", "error", err)
	}

	cfg := d.as.Config
	switch {
	case cfg.GuildID != "":
		d.register(s, cfg.GuildID)
	case cfg.RegisterGlobally:
		d.register(s, "")
	default:
		for _, g := range r.Guilds {
			d.register(s, g.ID)
		}
	}
}

// OnGuildCreate registers the commands in guilds joined after Ready,
// whatever guildId is set to.
func (d *Dispatcher) OnGuildCreate(s utils.Session, g *discordgo.GuildCreate) {
	defer recoverWarn("guildCreate")

	if g.Guild == nil || g.Unavailable {
		return
	}
	// global commands already reach every guild
	if d.as.Config.RegisterGlobally && d.as.Config.GuildID == "" {
		return
	}

	d.mu.Lock()
	_, known := d.readyGuilds[g.ID]
	d.readyGuilds[g.ID] = struct{}{}
	d.mu.Unlock()
	if known {
		return
	}

	slog.Info("joined a new guild", "guild_id", g.ID, "name", g.Name)
	d.register(s, g.ID)
}

// trackedSession remembers whether the interaction got its initial response.
type trackedSession struct {
	utils.Session
	acknowledged atomic.Bool
}

func (t *trackedSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	err := t.Session.InteractionRespond(interaction, resp, options...)
	if err == nil {
		t.acknowledged.Store(true)
	}
	return err
}

func (d *Dispatcher) OnInteractionCreate(s utils.Session, i *discordgo.InteractionCreate) {
	defer recoverWarn("interactionCreate")

	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	handler, ok := d.as.GetAppCmdHandler(name)
	if !ok {
		slog.Error("no handler for command", "command", name)
		return
	}

	ts := &trackedSession{Session: s}
	if err := runHandler(handler, ts, i); err != nil {
		slog.Error("handler error", "command", name, "error", err)

		if ts.acknowledged.Load() {
			err = utils.InteractRespHiddenFollowup(s, i, errorMessage)
		} else {
			err = utils.InteractRespHiddenReply(s, i, errorMessage)
		}
		if err != nil {
			slog.Warn("can't tell the user about the error", "command", name, "error", err)
		}
	}
}

func runHandler(handler utils.AppCmdHandler, s utils.Session, i *discordgo.InteractionCreate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runHandler: panic: %v", r)
		}
	}()
	return handler(s, i)
}

func recoverWarn(event string) {
	if r := recover(); r != nil {
		slog.Warn("recovered from panic in event handler", "event", event, "panic", r)
	}
}

// BridgeLogger routes discordgo's internal logging through slog.
func BridgeLogger() {
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		msg := "discordgo: " + fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError, discordgo.LogWarning:
			slog.Warn(msg)
		case discordgo.LogInformational:
			slog.Info(msg)
		default:
			slog.Debug(msg)
		}
	}
}
