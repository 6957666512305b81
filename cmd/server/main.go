package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/opsync/internal/config"
	"github.com/iudanet/opsync/internal/server"
	"github.com/iudanet/opsync/internal/server/applier"
	"github.com/iudanet/opsync/internal/server/handlers"
	"github.com/iudanet/opsync/internal/server/reconcile"
	"github.com/iudanet/opsync/internal/server/storage/sqlstore"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	dsn := flag.String("dsn", "", "SQLite path or postgres:// URL (overrides config)")
	issueToken := flag.String("issue-token", "", "Print a bearer token for the given device id and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}

	if *issueToken != "" {
		if err := printToken(cfg, *issueToken); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.ServerConfig) error {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.New(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	registry, err := applier.NewDefaultRegistry(store, logger)
	if err != nil {
		return fmt.Errorf("failed to build appliers: %w", err)
	}

	service := reconcile.NewService(store, store, store, registry, cfg.ConflictWindow, logger)

	logger.Info("Starting opsync server",
		"version", Version,
		"listen", cfg.Listen,
		"dialect", store.Dialect(),
		"conflict_window", cfg.ConflictWindow.String(),
		"entity_types", registry.Types())

	return server.New(cfg, service, store, Version, logger).Run(ctx)
}

func printToken(cfg *config.ServerConfig, deviceID string) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not configured")
	}

	token, expiresAt, err := handlers.GenerateDeviceToken(handlers.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		TokenTTL: cfg.TokenTTL,
	}, deviceID)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "Expires: %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func printVersion() {
	fmt.Printf("opsync server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
