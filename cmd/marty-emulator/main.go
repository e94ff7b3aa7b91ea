package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jcdorr003/marty-emulator/internal/config"
	"github.com/jcdorr003/marty-emulator/internal/metrics"
	"github.com/jcdorr003/marty-emulator/internal/server"
	"github.com/jcdorr003/marty-emulator/pkg/log"
)

var (
	// Build-time variables (set via ldflags)
	version   = "dev"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	// Parse command-line flags; they override the config file and environment
	hostFlag := flag.String("host", "", "Listen host (overrides config)")
	portFlag := flag.Int("port", 0, "Listen port (overrides config)")
	modeFlag := flag.String("mode", "", "Handshake mode: permissive or strict (overrides config)")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	versionFlag := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Marty Emulator %s\n", version)
		fmt.Printf("Built: %s\n", buildTime)
		fmt.Printf("Go: %s\n", goVersion)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *hostFlag != "" {
		cfg.Host = *hostFlag
	}
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}
	if *modeFlag != "" {
		cfg.HandshakeMode = *modeFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := log.New(*debugFlag, cfg.LogDir)
	defer logger.Sync()

	logger.Infow("🚀 Marty emulator starting", "version", version)
	logger.Infow("📁 Configuration loaded",
		"configDir", cfg.ConfigDir,
		"logDir", cfg.LogDir,
		"addr", cfg.Addr(),
		"handshakeMode", cfg.Mode(),
	)

	hostID, err := metrics.GetHostID()
	if err != nil {
		hostID = uuid.NewString()
		logger.Warnw("Machine ID unavailable, using a random host ID", "error", err)
	}
	logger.Infow("🖥️  Host identified", "hostId", hostID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	srv := server.New(server.Options{
		Mode:          cfg.Mode(),
		MaxFrameBytes: cfg.MaxFrameBytes,
		IdleTimeout:   cfg.IdleTimeout(),
		WriteTimeout:  cfg.WriteTimeout(),
		ShutdownGrace: cfg.ShutdownGrace(),
		HostID:        hostID,
	}, logger, recorder)

	var collector *metrics.Collector
	if cfg.StatsIntervalMs > 0 {
		collector = metrics.NewCollector(logger, cfg.StatsInterval(), srv.LiveConnections)
		go collector.Start(ctx)
	}

	if cfg.MetricsAddr != "" {
		router := metrics.Router(recorder, collector, srv.LiveConnections, time.Now())
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, router, logger); err != nil {
				logger.Errorw("Diagnostics server failed", "error", err)
			}
		}()
	}

	fmt.Println("🤖 Marty emulator is running on", cfg.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.ListenAndServe(ctx, cfg.Addr()); err != nil {
		logger.Fatalw("Failed to serve", "addr", cfg.Addr(), "error", err)
	}

	logger.Infow("✅ Goodbye!")
}
