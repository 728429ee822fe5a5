package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/automoto/galaxia-mp/config"
	"github.com/automoto/galaxia-mp/server/core"
	"github.com/automoto/galaxia-mp/server/store"
	"github.com/automoto/galaxia-mp/shared/leveldata"
	"github.com/automoto/galaxia-mp/shared/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "galaxia server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv(config.EnvPath), "Path to server TOML config")
	port := flag.Uint("port", 0, "Override network.port")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Network.Port = *port
	}

	log, err := cfg.Logging.NewLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	mode, err := selectGameMode(cfg)
	if err != nil {
		return err
	}

	arenas, names, err := leveldata.LoadAllArenas(os.DirFS(cfg.Server.AssetsDir), "levels")
	if err != nil {
		return fmt.Errorf("load levels: %w", err)
	}
	arena, ok := arenas[mode.Level]
	if !ok {
		return fmt.Errorf("game mode %q wants level %q, have %v", mode.Name, mode.Level, names)
	}
	if err := core.CheckArena(cfg, arena); err != nil {
		return err
	}

	if err := protocol.RegisterComponents(); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var history *store.History
	if cfg.Database.DSN != "" {
		pool, err := store.OpenPool(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := store.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		history = store.NewHistory(pool, cfg.Database.QueueSize, log)
		go history.Run(ctx)
		defer history.Close()
	}

	reg := prometheus.NewRegistry()
	server, err := core.NewServer(core.ServerOptions{
		Config:    cfg,
		Mode:      mode,
		Arena:     arena,
		Metrics:   core.NewMetrics(reg),
		Log:       log,
		Networked: true,
		OnSession: func(generation int, s *core.Session) {
			if history != nil {
				history.Attach(s.Bus(), generation)
			}
		},
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		debug := core.NewDebugServer(cfg.Metrics.Address, core.NewDebugRouter(server, reg), log)
		go func() {
			if err := debug.Run(ctx); err != nil {
				log.Error("debug server", zap.Error(err))
			}
		}()
	}

	if cfg.Master.URL != "" {
		go core.NewRegistration(cfg, server, log).Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("name", cfg.Server.Name),
			zap.Uint("port", cfg.Network.Port),
			zap.Int("tick_rate", cfg.Network.TickRate),
			zap.String("mode", mode.Name),
			zap.String("version", cfg.Server.Version))
		errCh <- server.Start(cfg.Network.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}
	server.Stop()
	return nil
}

func selectGameMode(cfg *config.Config) (config.GameMode, error) {
	if cfg.Server.GameModesFile == "" {
		return config.DefaultGameMode(), nil
	}
	modes, err := config.LoadGameModes(cfg.Server.GameModesFile)
	if err != nil {
		return config.GameMode{}, err
	}
	return modes.Find(cfg.Server.GameMode)
}
