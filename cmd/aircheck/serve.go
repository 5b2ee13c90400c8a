package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"aircheck/internal/notify"
	"aircheck/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload processing server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := ctx.buildLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lockPath := filepath.Join(cfg.Logging.LogDir, "aircheck.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another aircheck instance is already running")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	location, err := cfg.Location()
	if err != nil {
		return err
	}
	saga, store, err := ctx.buildSaga(logger)
	if err != nil {
		return err
	}
	tools, err := ctx.buildAudioTools(logger)
	if err != nil {
		return err
	}
	mailer := notify.NewMailer(cfg, logger)
	pusher := notify.NewPusher(cfg, logger)

	srv := server.New(cfg, store, saga, mailer, pusher, tools, location, logger)
	return srv.ListenAndServe(signalCtx)
}
