package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/iudanet/opsync/internal/client/api"
	"github.com/iudanet/opsync/internal/client/conflict"
	"github.com/iudanet/opsync/internal/client/oplog"
	"github.com/iudanet/opsync/internal/client/storage/boltdb"
	"github.com/iudanet/opsync/internal/client/sync"
	"github.com/iudanet/opsync/internal/config"
)

// app - открытые на время одной команды зависимости
type app struct {
	cfg      *config.ClientConfig
	store    *boltdb.Storage
	log      *oplog.Log
	client   *api.Client
	resolver *conflict.Resolver
	engine   *sync.Engine
	logger   *slog.Logger
}

// loadConfig читает конфиг и накладывает глобальные флаги
func loadConfig(opts *RootOptions) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Server != "" {
		cfg.Server = opts.Server
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Token != "" {
		cfg.Token = opts.Token
	}
	if opts.Strategy != "" {
		cfg.Strategy = opts.Strategy
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, cfg.Validate()
}

func openApp(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	strategy, err := conflict.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	store, err := boltdb.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log, err := oplog.Open(ctx, store, oplog.Config{
		MaxRetries: cfg.MaxRetries,
		RetryBase:  cfg.RetryBase,
		RetryMax:   cfg.RetryMax,
		DeviceID:   cfg.DeviceID,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open operation log: %w", err)
	}

	client := api.NewClient(cfg.Server)
	if cfg.Token != "" {
		client = client.WithToken(cfg.Token)
	}

	resolver := conflict.NewResolver(strategy)
	engine := sync.NewEngine(log, client, resolver, sync.Config{
		BatchSize:     cfg.BatchSize,
		SyncInterval:  cfg.SyncInterval,
		BatchTimeout:  cfg.BatchTimeout,
		ProbeInterval: cfg.ProbeInterval,
	}, logger)

	return &app{
		cfg:      cfg,
		store:    store,
		log:      log,
		client:   client,
		resolver: resolver,
		engine:   engine,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}
