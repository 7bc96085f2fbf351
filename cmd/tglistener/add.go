package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/tglistener/internal/config"
	"github.com/memohai/tglistener/internal/db"
	"github.com/memohai/tglistener/internal/listener"
	"github.com/memohai/tglistener/internal/logger"
	"github.com/memohai/tglistener/internal/session"
	"github.com/memohai/tglistener/internal/telegram"
)

// newAddCommand logs an account in on the terminal and saves it so the next
// serve restores it.
func newAddCommand(configPath *string) *cobra.Command {
	var cfg listener.SessionConfig

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log in an account interactively and save its session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdd(cmd.Context(), *configPath, cfg)
		},
	}
	cmd.Flags().Int64Var(&cfg.APIID, "api-id", 0, "Telegram API id")
	cmd.Flags().StringVar(&cfg.APIHash, "api-hash", "", "Telegram API hash")
	cmd.Flags().StringVar(&cfg.Phone, "phone", "", "account phone number")
	cmd.Flags().StringVar(&cfg.SessionToken, "session", "", "existing session token")
	cmd.Flags().StringVar(&cfg.TwoFactorPassword, "password", "", "two-step password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("api-id")
	_ = cmd.MarkFlagRequired("api-hash")
	return cmd
}

func runAdd(parent context.Context, path string, sc listener.SessionConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.L

	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	// No emitter: updates seen while logging in are not forwarded.
	registry := listener.NewRegistry(log, telegram.NewConnector(log), session.NewStore(log, pool),
		listener.Pipeline{}, listener.NewConsolePrompter(), listener.Options{Limit: 1})
	apiID, err := registry.Add(ctx, sc)
	if err != nil {
		return err
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	registry.Shutdown(stopCtx)
	log.Info("session saved", slog.Int64("api_id", apiID))
	return nil
}
