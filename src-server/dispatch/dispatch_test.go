package dispatch

import (
	"errors"
	"path/filepath"
	"testing"
	"vouchbot/src-server/utils"
	"vouchbot/src-server/utils/mocksession"

	"github.com/bwmarrin/discordgo"
)

func newTestState(t *testing.T, mutate func(cfg *utils.Config)) *utils.AppState {
	t.Helper()
	cfg := utils.DefaultConfig()
	cfg.BotToken = "token"
	cfg.ClientID = "app"
	cfg.VouchCountFile = filepath.Join(t.TempDir(), "vouchCount.json")
	if mutate != nil {
		mutate(cfg)
	}
	as := utils.NewAppState(cfg)
	t.Cleanup(as.GracefulShutdown)

	as.AddAppCmdInfo("vouch", &discordgo.ApplicationCommand{Name: "vouch", Description: "v"})
	as.AddAppCmdInfo("ping", &discordgo.ApplicationCommand{Name: "ping", Description: "p"})
	return as
}

func ready(guildIDs ...string) *discordgo.Ready {
	r := &discordgo.Ready{User: &discordgo.User{ID: "1", Username: "vouchbot"}}
	for _, id := range guildIDs {
		r.Guilds = append(r.Guilds, &discordgo.Guild{ID: id})
	}
	return r
}

func overwrittenGuilds(s *mocksession.Session) []string {
	var ids []string
	for _, o := range s.Overwrites {
		ids = append(ids, o.GuildID)
	}
	return ids
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if a[idx] != b[idx] {
			return false
		}
	}
	return true
}

func TestOnReady_RegistrationScope(t *testing.T) {
	for name, tc := range map[string]struct {
		mutate func(cfg *utils.Config)
		want   []string
	}{
		"configured guild": {
			mutate: func(cfg *utils.Config) { cfg.GuildID = "g9"; cfg.RegisterGlobally = true },
			want:   []string{"g9"},
		},
		"global": {
			mutate: func(cfg *utils.Config) { cfg.RegisterGlobally = true },
			want:   []string{""},
		},
		"every ready guild": {
			want: []string{"g1", "g2"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			d := New(newTestState(t, tc.mutate))
			s := &mocksession.Session{}
			d.OnReady(s, ready("g1", "g2"))

			if got := overwrittenGuilds(s); !equal(got, tc.want) {
				t.Errorf("registered in %v, want %v", got, tc.want)
			}
			for _, o := range s.Overwrites {
				if o.AppID != "app" || len(o.Commands) != 2 || o.Commands[0].Name != "ping" {
					t.Errorf("unexpected overwrite %+v", o)
				}
			}
		})
	}
}

func TestOnReady_RegistrationFailureIsNotFatal(t *testing.T) {
	d := New(newTestState(t, nil))
	calls := 0
	s := &mocksession.Session{
		ApplicationCommandBulkOverwriteFunc: func(string, string, []*discordgo.ApplicationCommand) error {
			calls++
			return errors.New("401 Unauthorized")
		},
	}
	d.OnReady(s, ready("g1", "g2"))
	if calls != 2 {
		t.Errorf("expected an attempt per guild, got %d", calls)
	}
}

func TestOnReady_Presence(t *testing.T) {
	// case: no activity configured
	d := New(newTestState(t, nil))
	s := &mocksession.Session{}
	d.OnReady(s, ready())
	if len(s.Statuses) != 0 {
		t.Errorf("presence set without an activity: %+v", s.Statuses)
	}

	// case: watching
	d = New(newTestState(t, func(cfg *utils.Config) {
		cfg.BotStatus = utils.BotStatus{Activity: "the vouches", Type: "Watching"}
	}))
	s = &mocksession.Session{}
	d.OnReady(s, ready())
	if len(s.Statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(s.Statuses))
	}
	activity := s.Statuses[0].Activities[0]
	if activity.Name != "the vouches" || activity.Type != discordgo.ActivityTypeWatching {
		t.Errorf("unexpected activity %+v", activity)
	}

	// case: custom status text lives in State
	s = &mocksession.Session{}
	if err := SetPresence(s, utils.BotStatus{Activity: "open for vouches", Type: "custom"}); err != nil {
		t.Fatal(err)
	}
	activity = s.Statuses[0].Activities[0]
	if activity.Type != discordgo.ActivityTypeCustom || activity.State != "open for vouches" {
		t.Errorf("unexpected activity %+v", activity)
	}
}

func TestOnGuildCreate(t *testing.T) {
	d := New(newTestState(t, nil))
	s := &mocksession.Session{}
	d.OnReady(s, ready("g1"))
	s.Overwrites = nil

	// case: lazy-load replay of a Ready guild
	d.OnGuildCreate(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}})
	// case: unavailable guild
	d.OnGuildCreate(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g3", Unavailable: true}})
	if len(s.Overwrites) != 0 {
		t.Fatalf("unexpected registration %v", overwrittenGuilds(s))
	}

	// case: new guild, twice
	d.OnGuildCreate(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g2", Name: "new"}})
	d.OnGuildCreate(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g2", Name: "new"}})
	if got := overwrittenGuilds(s); !equal(got, []string{"g2"}) {
		t.Errorf("registered in %v, want [g2]", got)
	}

	// case: a configured guildId does not stop registration in newly joined guilds
	d = New(newTestState(t, func(cfg *utils.Config) { cfg.GuildID = "g9" }))
	s = &mocksession.Session{}
	d.OnReady(s, ready("g9"))
	d.OnGuildCreate(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g9"}})
	d.OnGuildCreate(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g5", Name: "joined"}})
	if got := overwrittenGuilds(s); !equal(got, []string{"g9", "g5"}) {
		t.Errorf("registered in %v, want [g9 g5]", got)
	}

	// case: global mode never registers per guild
	d = New(newTestState(t, func(cfg *utils.Config) { cfg.RegisterGlobally = true }))
	s = &mocksession.Session{}
	d.OnGuildCreate(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g4"}})
	if len(s.Overwrites) != 0 {
		t.Errorf("global mode registered in %v", overwrittenGuilds(s))
	}
}

func command(name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:   "interaction",
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: name},
	}}
}

func TestOnInteractionCreate(t *testing.T) {
	as := newTestState(t, nil)
	d := New(as)

	called := 0
	as.AddAppCmdHandler("ok", func(s utils.Session, i *discordgo.InteractionCreate) error {
		called++
		return utils.InteractRespHiddenReply(s, i, "fine")
	})
	as.AddAppCmdHandler("fails-early", func(s utils.Session, i *discordgo.InteractionCreate) error {
		return errors.New("boom")
	})
	as.AddAppCmdHandler("fails-late", func(s utils.Session, i *discordgo.InteractionCreate) error {
		if err := utils.InteractRespHiddenDefer(s, i); err != nil {
			return err
		}
		return errors.New("boom")
	})
	as.AddAppCmdHandler("panics", func(s utils.Session, i *discordgo.InteractionCreate) error {
		panic("boom")
	})

	t.Run("success", func(t *testing.T) {
		s := &mocksession.Session{}
		d.OnInteractionCreate(s, command("ok"))
		if called != 1 || len(s.Responses) != 1 || len(s.Followups) != 0 {
			t.Errorf("called=%d responses=%d followups=%d", called, len(s.Responses), len(s.Followups))
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		s := &mocksession.Session{}
		d.OnInteractionCreate(s, command("nope"))
		if len(s.Responses)+len(s.Followups)+len(s.Edits) != 0 {
			t.Error("unknown commands must be dropped silently")
		}
	})

	t.Run("not a command", func(t *testing.T) {
		s := &mocksession.Session{}
		i := command("ok")
		i.Type = discordgo.InteractionMessageComponent
		d.OnInteractionCreate(s, i)
		if called != 1 || len(s.Responses) != 0 {
			t.Error("only application commands are dispatched")
		}
	})

	for name, wantFollowup := range map[string]bool{
		"fails-early": false,
		"fails-late":  true,
		"panics":      false,
	} {
		t.Run(name, func(t *testing.T) {
			s := &mocksession.Session{}
			d.OnInteractionCreate(s, command(name))

			if wantFollowup {
				if len(s.Followups) != 1 || s.Followups[0].Content != errorMessage || s.Followups[0].Flags != discordgo.MessageFlagsEphemeral {
					t.Errorf("expected an ephemeral error follow-up, got %+v", s.Followups)
				}
				return
			}
			if len(s.Followups) != 0 || len(s.Responses) != 1 {
				t.Fatalf("expected a single reply, got responses=%d followups=%d", len(s.Responses), len(s.Followups))
			}
			resp := s.Responses[0]
			if resp.Data.Content != errorMessage || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
				t.Errorf("unexpected error reply %+v", resp.Data)
			}
		})
	}

	t.Run("failed acknowledgement is not tracked", func(t *testing.T) {
		s := &mocksession.Session{}
		first := true
		s.InteractionRespondFunc = func(*discordgo.InteractionResponse) error {
			if first {
				first = false
				return errors.New("unknown interaction")
			}
			return nil
		}
		d.OnInteractionCreate(s, command("fails-late"))
		if len(s.Followups) != 0 || len(s.Responses) != 1 {
			t.Errorf("expected a reply, got responses=%d followups=%d", len(s.Responses), len(s.Followups))
		}
	})
}

func TestRecoverWarn(t *testing.T) {
	d := New(newTestState(t, nil))
	// a nil Ready would panic inside the handler
	d.OnReady(&mocksession.Session{}, nil)
}
