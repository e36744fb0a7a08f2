package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smarttodo/internal/api"
	"smarttodo/internal/config"
	"smarttodo/internal/logger"
	"smarttodo/internal/server"
	"smarttodo/internal/storage"
	"smarttodo/internal/store"
	"smarttodo/internal/ui"
)

type rootFlags struct {
	configPath string
	apiURL     string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "todo",
		Short:         "Smart todo list for the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", config.ResolveConfigPath(), "path to config.toml")
	root.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "tasks endpoint (overrides api_url)")

	root.AddCommand(newTUICommand(flags), newServeCommand(flags))
	return root
}

func newTUICommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local tasks API backed by SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Server.DBPath = dbPath
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides server.db_path)")
	return cmd
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.LoadOrCreate(flags.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	return cfg, nil
}

func runTUI(ctx context.Context, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config(cfg.Log))
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	rules, err := store.RulesFromNames(cfg.Validation.Required, cfg.Validation.RequireDeadline)
	if err != nil {
		return fmt.Errorf("validation config: %w", err)
	}

	client := api.New(cfg.APIURL,
		api.WithTimeout(cfg.RequestTimeout.Std()),
		api.WithLogger(log),
	)
	st := store.New(client, store.WithLogger(log), store.WithRules(rules))

	log.Info("starting", zap.String("api_url", cfg.APIURL))
	return ui.Run(ctx, st, cfg)
}

func runServe(ctx context.Context, cfg config.Config) error {
	// Serve logs to stderr regardless of log.path.
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	repo, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	srv := server.New(repo, log, cfg.Server.Prefix)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("db", cfg.Server.DBPath))
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
