package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/tubedeck/internal/auth"
	"github.com/HerbHall/tubedeck/internal/cache"
	"github.com/HerbHall/tubedeck/internal/config"
	"github.com/HerbHall/tubedeck/internal/dashboard"
	"github.com/HerbHall/tubedeck/internal/event"
	"github.com/HerbHall/tubedeck/internal/legal"
	"github.com/HerbHall/tubedeck/internal/library"
	"github.com/HerbHall/tubedeck/internal/metrics"
	"github.com/HerbHall/tubedeck/internal/registry"
	"github.com/HerbHall/tubedeck/internal/server"
	"github.com/HerbHall/tubedeck/internal/store"
	"github.com/HerbHall/tubedeck/internal/version"
	"github.com/HerbHall/tubedeck/internal/youtube"
	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("TubeDeck server starting", zap.String("version", version.Short()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg.GetString("database.path"))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer st.Close()

	bus := event.NewBus(logger.Named("event"))
	m := metrics.New()

	c := cache.New(ctx, cache.Options{
		RedisURL:   cfg.GetString("cache.redis_url"),
		TTL:        cfg.GetDuration("cache.ttl"),
		MaxEntries: cfg.GetInt("cache.max_entries"),
	}, logger.Named("cache"), m)
	defer c.Close()

	yt := youtube.NewClient(youtube.Config{
		PageSize:       cfg.GetInt("youtube.page_size"),
		SearchMaxPages: cfg.GetInt("youtube.search_max_pages"),
		Endpoint:       cfg.GetString("youtube.endpoint"),
	}, logger.Named("youtube"), m)

	authMod := auth.New()
	libMod := library.New(yt, authMod, library.WithCache(c), library.WithMetrics(m))
	dashMod := dashboard.New(libMod, legal.New())

	// Register all plugins (compile-time composition)
	reg := registry.New(logger)
	for _, p := range []plugin.Plugin{authMod, libMod, dashMod} {
		if err := reg.Register(p); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
		name := p.Info().Name
		if !cfg.GetBool("plugins." + name + ".enabled") {
			reg.Disable(name, "disabled in configuration")
		}
	}
	if err := reg.Validate(); err != nil {
		logger.Fatal("invalid plugin set", zap.Error(err))
	}

	deps := func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config: cfg,
			Logger: logger.Named(name),
			Store:  st,
			Bus:    bus,
		}
	}
	if err := reg.InitAll(ctx, deps); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}
	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	opts := []server.Option{
		server.WithMetrics(m),
		server.WithRateLimit(cfg.Viper().GetFloat64("ratelimit.rps"), cfg.GetInt("ratelimit.burst")),
		server.WithTimeouts(cfg.GetDuration("server.read_timeout"), cfg.GetDuration("server.write_timeout")),
	}
	if !reg.IsDisabled("auth") {
		opts = append(opts, server.WithSessions(authMod))
	}
	addr := net.JoinHostPort(cfg.GetString("server.host"), cfg.GetString("server.port"))
	srv := server.New(addr, reg, logger.Named("server"), opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("TubeDeck server ready", zap.String("addr", addr))

	// Wait for shutdown signal or a server failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reg.StopAll(shutdownCtx)

	logger.Info("TubeDeck server stopped")
}

// newLogger builds a production logger, or a development one when
// log.development is set, at the configured level.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.GetBool("log.development") {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = level
	return zc.Build()
}
