// scopewatch runs one scope engine against a live dashboard feed and
// periodically prints a state summary. It is a demo consumer of the engine,
// not part of the engine's interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/engine"
	"github.com/xtxerr/scope/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "", "config file path")
	channelURL := flag.String("channel", "", "websocket endpoint (overrides config)")
	historyURL := flag.String("history", "", "historical range endpoint (overrides config)")
	channels := flag.String("subscribe", "metrics,health,alerts,logs", "comma-separated channel list")
	interval := flag.Duration("interval", 10*time.Second, "summary print interval")
	debug := flag.Bool("debug", false, "enable debug logging")
	jsonLog := flag.Bool("json-log", false, "log in JSON format")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logging.Init(level, *jsonLog)
	logging.Info("scopewatch starting", "version", Version)

	var cfg *config.Config
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			logging.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.ID = "scopewatch"
	}

	// CLI overrides
	if *channelURL != "" {
		cfg.Channel.URL = *channelURL
	}
	if *historyURL != "" {
		cfg.History.URL = *historyURL
	}
	if cfg.Channel.URL != "" && len(cfg.Channel.Channels) == 0 {
		cfg.Channel.Channels = strings.Split(*channels, ",")
	}

	eng, err := engine.New(cfg, nil)
	if err != nil {
		logging.Error("create engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logging.Info("shutting down")
		cancel()
	}()

	go printLoop(ctx, eng, *interval)

	if err := eng.Run(ctx); err != nil {
		logging.Error("engine stopped", "error", err)
		os.Exit(1)
	}
}

func printLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printSummary(eng)
		}
	}
}

func printSummary(eng *engine.Engine) {
	snap := eng.Snapshot()

	fmt.Printf("[%s] conn=%s services=%d incidents=%d alerts=%d logs=%d series=%d\n",
		snap.TakenAt.Format(time.TimeOnly),
		snap.ConnState,
		len(snap.Services),
		len(snap.Incidents),
		len(snap.Alerts),
		len(snap.Logs),
		len(snap.SeriesKeys))

	for _, key := range snap.SeriesKeys {
		stats := eng.Stats(key)
		if stats.Count == 0 {
			continue
		}
		fmt.Printf("  %-40s n=%-5d avg=%-10.2f min=%-10.2f max=%-10.2f p95=%.2f\n",
			key, stats.Count, stats.Avg, stats.Min, stats.Max, stats.P95)
	}
}
