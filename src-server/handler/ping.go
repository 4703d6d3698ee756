package handler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"
	"vouchbot/src-server/model"
	"vouchbot/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

func Ping(as *utils.AppState) {
	id := "ping"
	as.AddAppCmdHandler(id, pingHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Check that the bot is alive.",
	})
}

func pingHandler(as *utils.AppState) utils.AppCmdHandler {
	return func(s utils.Session, i *discordgo.InteractionCreate) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		memUsage := float64(m.Sys) / 1024 / 1024

		recorded := "n/a"
		if as.BunDB != nil {
			startTimer := time.Now()
			count, err := model.CountVouches(context.Background(), as.BunDB)
			if err != nil {
				slog.Warn("pingHandler: can't count vouches", "error", err)
			} else {
				as.MetricChans.Push(as.MetricChans.DatabaseRead, startTimer)
				recorded = strconv.Itoa(count)
			}
		}

		embeds := []*discordgo.MessageEmbed{
			{
				Title: "Pong!",
				Footer: &discordgo.MessageEmbedFooter{
					Text: i.GuildID,
				},
				Fields: []*discordgo.MessageEmbedField{
					{
						Name:  "Uptime",
						Value: as.GetUptime().String(),
					},
					{
						Name:   "Latency",
						Value:  fmt.Sprintf("%dms", s.HeartbeatLatency().Milliseconds()),
						Inline: true,
					},
					{
						Name:   "Go version",
						Value:  runtime.Version(),
						Inline: true,
					},
					{
						Name:   "Memory",
						Value:  fmt.Sprintf("%.2fMB", memUsage),
						Inline: true,
					},
					{
						Name:   "Recorded vouches",
						Value:  recorded,
						Inline: true,
					},
				},
			},
		}

		startTimer := time.Now()
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags:  discordgo.MessageFlagsEphemeral,
				Embeds: embeds,
			},
		}); err != nil {
			slog.Warn("pingHandler: can't respond", "error", err)
			return nil
		}
		as.MetricChans.Push(as.MetricChans.DiscordSendMessage, startTimer)
		return nil
	}
}
