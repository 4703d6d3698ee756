// Package mocksession provides a recording utils.Session for tests.
package mocksession

import (
	"errors"
	"sync"
	"time"
	"vouchbot/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

var ErrUnknownChannel = errors.New("HTTP 404 Not Found, {\"message\": \"Unknown Channel\", \"code\": 10003}")

type SentEmbed struct {
	ChannelID string
	Embed     *discordgo.MessageEmbed
}

type Overwrite struct {
	AppID    string
	GuildID  string
	Commands []*discordgo.ApplicationCommand
}

// Session records every call. Func fields, when set, replace the default
// behavior of the matching method.
type Session struct {
	mu sync.Mutex

	Responses  []*discordgo.InteractionResponse
	Edits      []*discordgo.WebhookEdit
	Followups  []*discordgo.WebhookParams
	Sent       []SentEmbed
	Overwrites []Overwrite
	Statuses   []discordgo.UpdateStatusData

	// channels Channel() resolves; nil resolves every id
	KnownChannels map[string]bool
	Latency       time.Duration

	InteractionRespondFunc              func(resp *discordgo.InteractionResponse) error
	ChannelMessageSendEmbedFunc         func(channelID string, embed *discordgo.MessageEmbed) error
	ApplicationCommandBulkOverwriteFunc func(appID, guildID string, cmds []*discordgo.ApplicationCommand) error
}

var _ utils.Session = (*Session)(nil)

func (m *Session) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	if m.InteractionRespondFunc != nil {
		if err := m.InteractionRespondFunc(resp); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return nil
}

func (m *Session) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, newresp)
	return &discordgo.Message{}, nil
}

func (m *Session) FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Followups = append(m.Followups, data)
	return &discordgo.Message{}, nil
}

func (m *Session) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.KnownChannels != nil && !m.KnownChannels[channelID] {
		return nil, ErrUnknownChannel
	}
	return &discordgo.Channel{ID: channelID}, nil
}

func (m *Session) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.ChannelMessageSendEmbedFunc != nil {
		if err := m.ChannelMessageSendEmbedFunc(channelID, embed); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmbed{ChannelID: channelID, Embed: embed})
	return &discordgo.Message{ChannelID: channelID, Embeds: []*discordgo.MessageEmbed{embed}}, nil
}

func (m *Session) ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	if m.ApplicationCommandBulkOverwriteFunc != nil {
		if err := m.ApplicationCommandBulkOverwriteFunc(appID, guildID, commands); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Overwrites = append(m.Overwrites, Overwrite{AppID: appID, GuildID: guildID, Commands: commands})
	return commands, nil
}

func (m *Session) UpdateStatusComplex(usd discordgo.UpdateStatusData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses = append(m.Statuses, usd)
	return nil
}

func (m *Session) HeartbeatLatency() time.Duration {
	return m.Latency
}

// LastEditContent returns the content of the most recent reply edit.
func (m *Session) LastEditContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Edits) == 0 || m.Edits[len(m.Edits)-1].Content == nil {
		return ""
	}
	return *m.Edits[len(m.Edits)-1].Content
}
