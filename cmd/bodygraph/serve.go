package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/bodygraph/internal/api"
	"github.com/talgya/bodygraph/internal/config"
	"github.com/talgya/bodygraph/internal/persistence"
	"github.com/talgya/bodygraph/internal/render"
)

func serveCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port; overrides config")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	comp := render.New(cfg.Render.Theme)

	// ── Render cache ──────────────────────────────────────────────────
	var cache *persistence.DB
	if cfg.Cache.Enabled {
		db, err := persistence.Open(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := db.EnsureVersion(comp.Version()); err != nil {
			return err
		}
		slog.Info("render cache opened", "path", cfg.Cache.Path, "render_version", comp.Version())
		cache = db
	} else {
		slog.Info("render cache disabled")
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	srv := api.NewServer(cfg, comp, cache, Version)
	defer srv.Close()
	return srv.Start(ctx)
}
