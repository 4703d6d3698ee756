package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"vouchbot/src-server/metric"
	"vouchbot/src-server/model"
	"vouchbot/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

const (
	vouchCmdID = "vouch"

	minStars  = 1
	maxStars  = 5
	starGlyph = "⭐"

	deniedMessage   = "You are not allowed to use this command!"
	cooldownMessage = "You are vouching too fast, please try again later."
	successMessage  = "You successfully vouched!"
)

// swapped in tests
var timeNow = time.Now

// Vouch injects the "vouch" slash command into appCmdInfo and appCmdHandler in AppState.
func Vouch(as *utils.AppState) {
	as.AddAppCmdHandler(vouchCmdID, vouchHandler(as))
	as.AddAppCmdInfo(vouchCmdID, VouchCommand(as.Config))
}

// VouchCommand builds the command description. The optional "user" and
// "attachment" options only exist when their toggle is on.
func VouchCommand(cfg *utils.Config) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        vouchCmdID,
		Description: "Vouch for a user or the business.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "Your vouch message.",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "stars",
				Description: "Number of stars (1-5).",
				Required:    true,
				Choices:     starChoices(),
			},
		},
	}

	if cfg.AllowUserSpecificVouch {
		cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The user you want to vouch for.",
			Required:    true,
		})
	}
	if cfg.UploadImage {
		cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionAttachment,
			Name:        "attachment",
			Description: "Attach an image/proof that will be displayed in the vouch message",
			Required:    cfg.UploadImage,
		})
	}
	return cmd
}

func starChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxStars)
	for n := minStars; n <= maxStars; n++ {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  strings.Repeat(starGlyph, n),
			Value: n,
		})
	}
	return choices
}

// Submission is what one invocation of the command carries.
type Submission struct {
	Voucher    *discordgo.User
	Target     *discordgo.User // nil unless allowUserSpecificVouch
	Message    string
	Stars      int
	Attachment *discordgo.MessageAttachment // nil when nothing was uploaded
}

func caller(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func parseSubmission(cfg *utils.Config, i *discordgo.InteractionCreate) (*Submission, error) {
	sub := &Submission{Voucher: caller(i)}
	if sub.Voucher == nil {
		return nil, fmt.Errorf("parseSubmission: can't get user from interaction")
	}

	data := i.ApplicationCommandData()
	for _, opt := range data.Options {
		switch opt.Name {
		case "message":
			sub.Message = opt.StringValue()
		case "stars":
			sub.Stars = int(opt.IntValue())
		case "user":
			user := opt.UserValue(nil)
			if data.Resolved != nil {
				if resolved, ok := data.Resolved.Users[user.ID]; ok {
					user = resolved
				}
			}
			sub.Target = user
		case "attachment":
			attachmentID, _ := opt.Value.(string)
			if data.Resolved != nil {
				sub.Attachment = data.Resolved.Attachments[attachmentID]
			}
		}
	}

	if sub.Stars < minStars || sub.Stars > maxStars {
		return nil, fmt.Errorf("parseSubmission: stars out of range | stars=%d", sub.Stars)
	}
	if strings.TrimSpace(sub.Message) == "" {
		return nil, fmt.Errorf("parseSubmission: message is empty")
	}
	if cfg.AllowUserSpecificVouch && sub.Target == nil {
		return nil, fmt.Errorf("parseSubmission: target user is missing")
	}
	return sub, nil
}

// user tag the way Discord clients show it, the discriminator is gone for migrated accounts
func authorTag(u *discordgo.User) string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func starsValue(stars int) string {
	return fmt.Sprintf("%s ``(%d/%d)``", strings.Repeat(starGlyph, stars), stars, maxStars)
}

// BuildVouchEmbed renders the customization templates for one vouch.
func BuildVouchEmbed(cfg *utils.Config, sub *Submission, count int, now time.Time) *discordgo.MessageEmbed {
	c := cfg.Customization
	// every placeholder is available in every template
	vars := map[string]string{
		"count":          strconv.Itoa(count),
		"authorTag":      authorTag(sub.Voucher),
		"messageContent": sub.Message,
	}

	embed := &discordgo.MessageEmbed{
		Color:       c.EmbedColor.Int(),
		Title:       utils.RenderTemplate(c.VouchTitle, vars),
		Description: utils.RenderTemplate(c.MessageDescription, vars),
		Footer: &discordgo.MessageEmbedFooter{
			Text:    utils.RenderTemplate(c.VouchFooterText, vars),
			IconURL: sub.Voucher.AvatarURL(""),
		},
	}

	if cfg.AllowUserSpecificVouch && sub.Target != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   c.UserFieldTitle,
			Value:  sub.Target.Mention(),
			Inline: true,
		})
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{
			Name:   c.VouchedByFieldTitle,
			Value:  sub.Voucher.Mention(),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   c.VouchedAtFieldTitle,
			Value:  fmt.Sprintf("<t:%d:R>", now.Unix()),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   c.StarsFieldTitle,
			Value:  starsValue(sub.Stars),
			Inline: true,
		},
	)

	if cfg.UploadImage && sub.Attachment != nil && strings.HasPrefix(sub.Attachment.ContentType, "image") {
		embed.Image = &discordgo.MessageEmbedImage{
			URL: sub.Attachment.URL,
		}
	}

	return embed
}

func vouchHandler(as *utils.AppState) utils.AppCmdHandler {
	return func(s utils.Session, i *discordgo.InteractionCreate) (err error) {
		defer func() {
			if err != nil {
				metric.Vouches.WithLabelValues(metric.OutcomeFailed).Inc()
			}
		}()

		// #region - respond to the original request
		startTimer := time.Now()
		if err := utils.InteractRespHiddenDefer(s, i); err != nil {
			return fmt.Errorf("vouchHandler: can't send defer message: %w", err)
		}
		as.MetricChans.Push(as.MetricChans.DiscordSendMessage, startTimer)
		// #endregion

		// #region - only configured roles may vouch, checked before the counter moves
		if i.Member == nil || !utils.HasAnyRole(i.Member.Roles, as.Config.RequiredRoles) {
			metric.Vouches.WithLabelValues(metric.OutcomeDenied).Inc()
			if err := utils.InteractRespEdit(s, i, deniedMessage); err != nil {
				slog.Warn("vouchHandler: can't send message about missing role", "error", err)
			}
			return nil
		}
		// #endregion

		sub, err := parseSubmission(as.Config, i)
		if err != nil {
			return fmt.Errorf("vouchHandler: %w", err)
		}

		if !as.Cooldown.Allow(sub.Voucher.ID) {
			metric.Vouches.WithLabelValues(metric.OutcomeCooldown).Inc()
			if err := utils.InteractRespEdit(s, i, cooldownMessage); err != nil {
				slog.Warn("vouchHandler: can't send message about cooldown", "error", err)
			}
			return nil
		}

		count := as.Counter.Increment()
		embed := BuildVouchEmbed(as.Config, sub, count, timeNow())

		// #region - post the vouch, a channel that can't be resolved is skipped
		channelID := as.Config.VouchChannelID
		channel, err := resolveChannel(s, channelID)
		if err != nil {
			metric.Vouches.WithLabelValues(metric.OutcomeNoChannel).Inc()
			slog.Warn("vouchHandler: vouch channel not found, vouch not posted",
				"channel_id", channelID, "count", count, "error", err)
		} else {
			startTimer = time.Now()
			if _, err := s.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
				return fmt.Errorf("vouchHandler: can't send vouch to channel %s: %w", channel.ID, err)
			}
			as.MetricChans.Push(as.MetricChans.DiscordSendMessage, startTimer)
			metric.Vouches.WithLabelValues(metric.OutcomeSent).Inc()

			recordVouch(as, i, sub, count, channel.ID, embed)
		}
		// #endregion

		if err := utils.InteractRespEdit(s, i, successMessage); err != nil {
			return fmt.Errorf("vouchHandler: can't edit reply: %w", err)
		}
		return nil
	}
}

func resolveChannel(s utils.Session, channelID string) (*discordgo.Channel, error) {
	if channelID == "" {
		return nil, fmt.Errorf("vouchChannelId is not set")
	}
	return s.Channel(channelID)
}

// recordVouch appends to the history table. Failures only get logged,
// the vouch is already public at this point.
func recordVouch(as *utils.AppState, i *discordgo.InteractionCreate, sub *Submission, count int, channelID string, embed *discordgo.MessageEmbed) {
	if as.BunDB == nil {
		return
	}

	vouch := &model.Vouch{
		Number:           count,
		GuildID:          i.GuildID,
		ChannelID:        channelID,
		VoucherID:        sub.Voucher.ID,
		Stars:            sub.Stars,
		Message:          sub.Message,
		CreatedAtUnixUTC: timeNow().UTC().Unix(),
	}
	if sub.Target != nil {
		vouch.TargetID = sub.Target.ID
	}
	if embed.Image != nil {
		vouch.ImageURL = embed.Image.URL
	}

	startTimer := time.Now()
	if err := vouch.Insert(context.Background(), as.BunDB); err != nil {
		slog.Error("vouchHandler: can't record vouch", "count", count, "error", err)
		return
	}
	as.MetricChans.Push(as.MetricChans.DatabaseWrite, startTimer)
}
