package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/whisperserver/app"
	"github.com/kbukum/whisperserver/bootstrap"
	"github.com/kbukum/whisperserver/logger"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(ctx context.Context, flags *rootFlags) error {
	cfg, err := flags.load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	a, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg, a.Logger)
	if err != nil {
		return err
	}
	if err := svc.Register(a); err != nil {
		return err
	}
	return a.Run(ctx)
}

func checkCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and engine preconditions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			log := logger.New(&cfg.Logging, cfg.Name)
			svc, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			if err := svc.Check(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: engine=%s upload_dir=%s max_size=%s\n",
				cfg.Engine.Type, svc.Store.Dir(), cfg.Upload.MaxSize)
			return nil
		},
	}
}
