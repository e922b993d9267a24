package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/promptvault/internal/auth"
	"github.com/thebtf/promptvault/internal/config"
	"github.com/thebtf/promptvault/internal/server"
	"github.com/thebtf/promptvault/internal/server/sse"
	"github.com/thebtf/promptvault/internal/service"
	"github.com/thebtf/promptvault/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

var errRestart = errors.New("settings changed, restart required")

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http_addr)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	broadcaster := sse.NewBroadcaster()
	srv := server.New(server.Options{
		Version:        Version,
		Services:       service.New(store, broadcaster),
		Issuer:         issuer,
		Broadcaster:    broadcaster,
		DB:             store,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	settingsWatcher, err := watcher.New(config.SettingsPath(), func() {
		cancel(errRestart)
	})
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Settings watcher unavailable")
	}
	defer settingsWatcher.Stop()

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.SetReady(false)
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return httpSrv.Shutdown(shutdownCtx)
	})

	srv.SetReady(true)
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("version", Version).
		Str("driver", store.Driver()).
		Msg("promptvault listening")

	if err := g.Wait(); err != nil {
		return err
	}
	if errors.Is(context.Cause(ctx), errRestart) {
		log.Info().Str("path", config.SettingsPath()).Msg("Settings changed, exiting for restart")
		return errRestart
	}
	return nil
}
