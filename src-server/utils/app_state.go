package utils

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
	"vouchbot/src-server/counter"

	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type AppState struct {
	Config      *Config
	RawDB       *sql.DB
	BunDB       *bun.DB
	DgSession   *discordgo.Session
	Counter     counter.Store
	Cooldown    *Cooldown
	MetricChans *Metric

	// will be send to Discord
	appCmdInfo map[string]*discordgo.ApplicationCommand
	// handling commands from Discord WSAPI
	appCmdHandler map[string]AppCmdHandler
	appCmdMu      sync.RWMutex

	startedAt time.Time

	AppCloseSignalChan chan os.Signal
	shutdownChans      []chan struct{}
	shutdownMu         sync.Mutex
}

// NewAppState wires the in-process parts only; the database and the
// Discord session are opened separately with OpenDatabase and OpenDiscord.
func NewAppState(cfg *Config) *AppState {
	as := &AppState{
		Config:             cfg,
		Cooldown:           NewCooldown(cfg.VouchCooldown),
		MetricChans:        NewMetric(),
		appCmdInfo:         make(map[string]*discordgo.ApplicationCommand),
		appCmdHandler:      make(map[string]AppCmdHandler),
		startedAt:          time.Now(),
		AppCloseSignalChan: make(chan os.Signal, 1),
	}

	fileStore := counter.NewFileStore(cfg.VouchCountFile)
	fileStore.OnRead = func(d time.Duration) {
		as.MetricChans.PushDuration(as.MetricChans.CounterFileRead, d)
	}
	fileStore.OnWrite = func(d time.Duration) {
		as.MetricChans.PushDuration(as.MetricChans.CounterFileWrite, d)
	}
	as.Counter = fileStore

	// forget cooled-down users every so often, the limiter map would only grow otherwise
	if as.Cooldown.Enabled() {
		go func() {
			gracefulShutdownCh := as.CreateGracefulShutdownChan()
			ticker := time.NewTicker(max(cfg.VouchCooldown, 10*time.Minute))
			defer ticker.Stop()
			for {
				select {
				case <-gracefulShutdownCh:
					return
				case <-ticker.C:
					as.Cooldown.Prune()
				}
			}
		}()
	}

	return as
}

func (as *AppState) OpenDatabase() error {
	var err error
	as.RawDB, err = sql.Open(sqliteshim.ShimName, "file:"+as.Config.DatabasePath+"?mode=rwc")
	if err != nil {
		return fmt.Errorf("OpenDatabase: %w", err)
	}
	as.RawDB.SetMaxIdleConns(8)
	as.BunDB = bun.NewDB(as.RawDB, sqlitedialect.New())
	as.BunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))
	slog.Debug("database opened", "path", as.Config.DatabasePath)
	return nil
}

func (as *AppState) OpenDiscord() error {
	dg, err := discordgo.New("Bot " + as.Config.BotToken)
	if err != nil {
		return fmt.Errorf("OpenDiscord: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildMessages
	as.DgSession = dg
	return nil
}

func (as *AppState) AddAppCmdInfo(id string, info *discordgo.ApplicationCommand) {
	as.appCmdMu.Lock()
	defer as.appCmdMu.Unlock()
	as.appCmdInfo[id] = info
}

func (as *AppState) AddAppCmdHandler(id string, handler AppCmdHandler) {
	as.appCmdMu.Lock()
	defer as.appCmdMu.Unlock()
	as.appCmdHandler[id] = handler
}

func (as *AppState) GetAppCmdHandler(id string) (AppCmdHandler, bool) {
	as.appCmdMu.RLock()
	defer as.appCmdMu.RUnlock()
	handler, ok := as.appCmdHandler[id]
	return handler, ok
}

// AppCmdInfos returns every command description, sorted by name.
func (as *AppState) AppCmdInfos() []*discordgo.ApplicationCommand {
	as.appCmdMu.RLock()
	defer as.appCmdMu.RUnlock()

	cmds := make([]*discordgo.ApplicationCommand, 0, len(as.appCmdInfo))
	for _, info := range as.appCmdInfo {
		cmds = append(cmds, info)
	}
	sort.Slice(cmds, func(a, b int) bool { return cmds[a].Name < cmds[b].Name })
	return cmds
}

func (as *AppState) GetUptime() time.Duration {
	return time.Since(as.startedAt).Round(time.Second)
}

// CreateGracefulShutdownChan returns a channel closed by GracefulShutdown.
func (as *AppState) CreateGracefulShutdownChan() chan struct{} {
	as.shutdownMu.Lock()
	defer as.shutdownMu.Unlock()
	ch := make(chan struct{})
	as.shutdownChans = append(as.shutdownChans, ch)
	return ch
}

func (as *AppState) GracefulShutdown() {
	as.shutdownMu.Lock()
	for _, ch := range as.shutdownChans {
		close(ch)
	}
	as.shutdownChans = nil
	as.shutdownMu.Unlock()

	if as.DgSession != nil {
		if err := as.DgSession.Close(); err != nil {
			slog.Warn("can't close discord session", "error", err)
		}
	}
	if as.BunDB != nil {
		if err := as.BunDB.Close(); err != nil {
			slog.Warn("can't close database", "error", err)
		}
	}
}
