package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingToken    = errors.New("botToken is not set")
	ErrMissingClientID = errors.New("clientId is not set")
)

// Default text templates. ${count}, ${authorTag} and ${messageContent}
// are the placeholders understood by the vouch command.
const (
	DefaultVouchTitle          = "🎉 Vouch (#${count})"
	DefaultVouchFooterText     = "Vouched by ${authorTag}"
	DefaultUserFieldTitle      = "Vouched User"
	DefaultVouchedByFieldTitle = "Vouched By"
	DefaultVouchedAtFieldTitle = "Vouched at"
	DefaultStarsFieldTitle     = "Stars"
	DefaultMessageDescription  = "${messageContent}"
)

type Config struct {
	BotToken         string    `yaml:"botToken" env:"DISCORD_APP_TOKEN"`
	ClientID         string    `yaml:"clientId" env:"DISCORD_CLIENT_ID"`
	GuildID          string    `yaml:"guildId" env:"DISCORD_GUILD_ID"`
	RegisterGlobally bool      `yaml:"registerGlobally" env:"REGISTER_GLOBALLY"`
	BotStatus        BotStatus `yaml:"botStatus"`

	RequiredRoles          []string      `yaml:"requiredRoles"`
	VouchChannelID         string        `yaml:"vouchChannelId" env:"VOUCH_CHANNEL_ID"`
	AllowUserSpecificVouch bool          `yaml:"allowUserSpecificVouch"`
	UploadImage            bool          `yaml:"uploadImage"`
	Customization          Customization `yaml:"customization"`

	// 0 disables the per-user cooldown
	VouchCooldown time.Duration `yaml:"vouchCooldown" env:"VOUCH_COOLDOWN"`

	VouchCountFile string `yaml:"vouchCountFile" env:"VOUCH_COUNT_FILE"`
	DatabasePath   string `yaml:"databasePath" env:"DATABASE_PATH"`

	// empty disables the /metrics HTTP server
	MetricsPort              string        `yaml:"metricsPort" env:"METRICS_PORT"`
	MetricCollectionInterval time.Duration `yaml:"metricCollectionInterval" env:"METRIC_COLLECTION_INTERVAL"`
}

type BotStatus struct {
	Activity string `yaml:"activity"`
	// Playing, Streaming, Listening, Watching, Custom, Competing or their numeric value
	Type string `yaml:"type"`
}

type Customization struct {
	VouchTitle          string `yaml:"vouchTitle"`
	VouchFooterText     string `yaml:"vouchFooterText"`
	UserFieldTitle      string `yaml:"userFieldTitle"`
	VouchedByFieldTitle string `yaml:"vouchedByFieldTitle"`
	VouchedAtFieldTitle string `yaml:"vouchedAtFieldTitle"`
	StarsFieldTitle     string `yaml:"starsFieldTitle"`
	MessageDescription  string `yaml:"messageDescription"`
	EmbedColor          Color  `yaml:"embedColor"`
}

// Get CONFIG_PATH env, default to ./config.yml
func ConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "./config.yml"
}

func DefaultConfig() *Config {
	cfg := &Config{
		VouchCountFile:           "./vouchCount.json",
		DatabasePath:             "./vouches.db",
		MetricCollectionInterval: 15 * time.Second,
	}
	cfg.Customization.applyDefaults()
	return cfg
}

// LoadConfig reads the YAML file at path on top of DefaultConfig, then lets
// environment variables override the credentials and paths.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ParseConfig: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ParseConfig: %w", err)
	}
	cfg.Customization.applyDefaults()
	if cfg.MetricCollectionInterval <= 0 {
		cfg.MetricCollectionInterval = 15 * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ParseConfig: %w", err)
	}
	cfg.logSummary()
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrMissingToken
	}
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	if _, err := c.BotStatus.ActivityType(); err != nil {
		return err
	}
	return nil
}

func (c *Config) logSummary() {
	slog.Debug("config", "botToken", c.BotToken[:min(3, len(c.BotToken))]+"...")
	slog.Debug("config", "clientId", c.ClientID, "guildId", c.GuildID, "registerGlobally", c.RegisterGlobally)
	slog.Debug("config", "vouchChannelId", c.VouchChannelID, "requiredRoles", c.RequiredRoles)
	slog.Debug("config", "allowUserSpecificVouch", c.AllowUserSpecificVouch, "uploadImage", c.UploadImage)
	slog.Debug("config", "vouchCountFile", c.VouchCountFile, "databasePath", c.DatabasePath)
	if len(c.RequiredRoles) == 0 {
		slog.Warn("requiredRoles is empty, nobody will be able to vouch")
	}
	if c.VouchChannelID == "" {
		slog.Warn("vouchChannelId is not set, vouches won't be posted anywhere")
	}
}

func (c *Customization) applyDefaults() {
	for _, f := range []struct {
		field *string
		value string
	}{
		{&c.VouchTitle, DefaultVouchTitle},
		{&c.VouchFooterText, DefaultVouchFooterText},
		{&c.UserFieldTitle, DefaultUserFieldTitle},
		{&c.VouchedByFieldTitle, DefaultVouchedByFieldTitle},
		{&c.VouchedAtFieldTitle, DefaultVouchedAtFieldTitle},
		{&c.StarsFieldTitle, DefaultStarsFieldTitle},
		{&c.MessageDescription, DefaultMessageDescription},
	} {
		if *f.field == "" {
			*f.field = f.value
		}
	}
}

// Enabled reports whether a presence should be set at all.
func (b BotStatus) Enabled() bool {
	return b.Activity != ""
}

var activityTypes = map[string]discordgo.ActivityType{
	"playing":   discordgo.ActivityTypeGame,
	"streaming": discordgo.ActivityTypeStreaming,
	"listening": discordgo.ActivityTypeListening,
	"watching":  discordgo.ActivityTypeWatching,
	"custom":    discordgo.ActivityTypeCustom,
	"competing": discordgo.ActivityTypeCompeting,
}

// ActivityType resolves Type, defaulting to Playing when unset.
func (b BotStatus) ActivityType() (discordgo.ActivityType, error) {
	name := FoldName(b.Type)
	if name == "" {
		return discordgo.ActivityTypeGame, nil
	}
	if t, ok := activityTypes[name]; ok {
		return t, nil
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < int(discordgo.ActivityTypeGame) || n > int(discordgo.ActivityTypeCompeting) {
		return 0, fmt.Errorf("botStatus.type: unknown activity type %q", b.Type)
	}
	return discordgo.ActivityType(n), nil
}

// Color is an embed color. The YAML value may be "#RRGGBB", "0xRRGGBB",
// a plain decimal number or one of the named colors below.
type Color int

// ColorRandom picks a new color for every embed.
const ColorRandom Color = -1

var namedColors = map[string]Color{
	"default":           0x000000,
	"white":             0xFFFFFF,
	"aqua":              0x1ABC9C,
	"green":             0x57F287,
	"blue":              0x3498DB,
	"yellow":            0xFEE75C,
	"purple":            0x9B59B6,
	"luminousvividpink": 0xE91E63,
	"fuchsia":           0xEB459E,
	"gold":              0xF1C40F,
	"orange":            0xE67E22,
	"red":               0xED4245,
	"grey":              0x95A5A6,
	"navy":              0x34495E,
	"darkaqua":          0x11806A,
	"darkgreen":         0x1F8B4C,
	"darkblue":          0x206694,
	"darkpurple":        0x71368A,
	"darkvividpink":     0xAD1457,
	"darkgold":          0xC27C0E,
	"darkorange":        0xA84300,
	"darkred":           0x992D22,
	"darkgrey":          0x979C9F,
	"darkergrey":        0x7F8C8D,
	"lightgrey":         0xBCC0C0,
	"darknavy":          0x2C3E50,
	"blurple":           0x5865F2,
	"greyple":           0x99AAB5,
	"darkbutnotblack":   0x2C2F33,
	"notquiteblack":     0x23272A,
	"random":            ColorRandom,
}

var _ yaml.Unmarshaler = (*Color)(nil)

func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseColor(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = parsed
	return nil
}

// Int returns the value to put in an embed, rolling one for ColorRandom.
func (c Color) Int() int {
	if c == ColorRandom {
		return rand.IntN(0xFFFFFF + 1)
	}
	return int(c)
}

func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if named, ok := namedColors[FoldName(s)]; ok {
		return named, nil
	}

	var (
		n   int64
		err error
	)
	switch {
	case s == "":
		return 0, nil
	case strings.HasPrefix(s, "#"):
		n, err = strconv.ParseInt(s[1:], 16, 32)
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		n, err = strconv.ParseInt(s[2:], 16, 32)
	default:
		n, err = strconv.ParseInt(s, 10, 32)
	}
	if err != nil || n < 0 || n > 0xFFFFFF {
		return 0, fmt.Errorf("invalid embed color %q", s)
	}
	return Color(n), nil
}
