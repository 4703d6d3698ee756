package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"vouchbot/src-server/dispatch"
	"vouchbot/src-server/handler"
	"vouchbot/src-server/metric"
	"vouchbot/src-server/model"
	"vouchbot/src-server/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}

	level := slog.LevelDebug
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			slog.Warn("invalid LOG_LEVEL, using debug", "value", raw)
		}
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	cfg, err := utils.LoadConfig(utils.ConfigPath())
	if err != nil {
		slog.Error("can't load config", "error", err)
		os.Exit(1)
	}

	// There are 2 important things (and others) inside the AppState:
	// - appCmdInfo: a map of all slash commands
	// - appCmdHandler: a map of all slash command handlers
	as := utils.NewAppState(cfg)

	if err := as.OpenDatabase(); err != nil {
		slog.Error("can't open database", "error", err)
		os.Exit(1)
	}
	if err := model.CreateSchema(as.BunDB); err != nil {
		slog.Error("can't create database schema", "error", err)
		os.Exit(1)
	}

	// injecting interaction handlers into appCmdInfo, appCmdHandler in AppState
	handler.Vouch(as)
	handler.Ping(as)

	if err := as.OpenDiscord(); err != nil {
		slog.Error("can't create discord session", "error", err)
		os.Exit(1)
	}

	// commands get registered from the Ready event
	dispatch.BridgeLogger()
	dispatch.New(as).Attach(as.DgSession)

	// open a connection to Discord
	if err := as.DgSession.Open(); err != nil {
		slog.Error("can't log in to discord", "error", err)
		as.GracefulShutdown()
		os.Exit(1)
	}

	go metric.Init(as)

	// http server
	if as.Config.MetricsPort != "" {
		go func() {
			muxer := http.NewServeMux()
			muxer.Handle("GET /metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+as.Config.MetricsPort, muxer); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("cannot start metrics server", "error", err)
				as.AppCloseSignalChan <- syscall.SIGTERM
			}
		}()
	}

	slog.Info("app is now running, press Ctrl+C to exit")

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan
	as.GracefulShutdown()

	slog.Info("Gracefully shutting down...")
}
