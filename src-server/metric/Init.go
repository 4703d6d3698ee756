package metric

import (
	"log/slog"
	"time"
	"vouchbot/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// Vouches counts invocations of the vouch command by outcome.
var Vouches = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "vouchbot_vouches_total",
	Help: "Vouch command invocations by outcome",
}, []string{"outcome"})

const (
	OutcomeSent      = "sent"
	OutcomeDenied    = "denied"
	OutcomeCooldown  = "cooldown"
	OutcomeNoChannel = "no_channel"
	OutcomeFailed    = "failed"
)

func register(name string, collector prometheus.Collector) bool {
	if err := prometheus.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register metric", "metric", name, "error", err)
			return false
		}
	}
	slog.Debug("metric registered", "metric", name)
	return true
}

func unregister(name string, collector prometheus.Collector) {
	switch prometheus.Unregister(collector) {
	case true:
		slog.Debug("metric unregistered", "metric", name)
	case false:
		slog.Warn("metric not registered", "metric", name)
	}
}

// latencyGauge mirrors the last sample pushed on ch, and falls back to 0
// when nothing happened for clearTickerInterval.
func latencyGauge(as *utils.AppState, name, help string, ch chan float64, clearTickerInterval time.Duration) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
	if register(name, gauge) {
		gauge.Set(0)
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-gracefulShutdownCh:
				unregister(name, gauge)
				return
			case latency := <-ch:
				gauge.Set(latency)
				clearTicker.Reset(clearTickerInterval)
			case <-clearTicker.C:
				gauge.Set(0)
			}
		}
	}()
}

// probeGauge samples probe every tickerInterval.
func probeGauge(as *utils.AppState, name, help string, tickerInterval time.Duration, probe func() (time.Duration, error)) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
	if register(name, gauge) {
		gauge.Set(0)
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gracefulShutdownCh:
				unregister(name, gauge)
				return
			case <-ticker.C:
				latency, err := probe()
				if err != nil {
					slog.Error("can't probe metric", "metric", name, "error", err)
					continue
				}
				gauge.Set(float64(latency.Microseconds()))
			}
		}
	}()
}

func Init(as *utils.AppState) {
	tickerInterval := as.Config.MetricCollectionInterval
	clearTickerInterval := tickerInterval * 2

	register("vouchbot_vouches_total", Vouches)

	latencyGauge(as, "vouchbot_counter_file_read_microsec",
		"The latency of a vouch count file read in microseconds",
		as.MetricChans.CounterFileRead, clearTickerInterval)
	latencyGauge(as, "vouchbot_counter_file_write_microsec",
		"The latency of a vouch count file write in microseconds",
		as.MetricChans.CounterFileWrite, clearTickerInterval)
	latencyGauge(as, "vouchbot_database_read_microsec",
		"The latency of a database read in microseconds",
		as.MetricChans.DatabaseRead, clearTickerInterval)
	latencyGauge(as, "vouchbot_database_write_microsec",
		"The latency of a database write in microseconds",
		as.MetricChans.DatabaseWrite, clearTickerInterval)
	latencyGauge(as, "vouchbot_discord_send_message_microsec",
		"The latency of a discord message send in microseconds",
		as.MetricChans.DiscordSendMessage, clearTickerInterval)

	if as.BunDB != nil {
		probeGauge(as, "vouchbot_database_empty_read_microsec",
			"The latency of an empty database read in microseconds",
			tickerInterval, func() (time.Duration, error) { return database(as) })
	}
	if as.DgSession != nil {
		probeGauge(as, "vouchbot_discord_heartbeat_latency_microsec",
			"The latency of a discord heartbeat in microseconds",
			tickerInterval, func() (time.Duration, error) { return as.DgSession.HeartbeatLatency(), nil })
	}
}
