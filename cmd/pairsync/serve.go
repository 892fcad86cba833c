package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/pairsync/adapters/events"
	"github.com/layer-3/pairsync/adapters/tokenizer"
	"github.com/layer-3/pairsync/engine"
	"github.com/layer-3/pairsync/ports"
	"github.com/layer-3/pairsync/service"
	transport "github.com/layer-3/pairsync/transport/http"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP pairing API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				opts.cfg.HTTP.Addr = addr
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger := opts.cfg, opts.logger

	// Viewer tokens only need to outlive this process.
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}

	a, err := wireApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	factory := func(id string, source ports.ExportSource, observers []ports.Observer) (*engine.Engine, error) {
		return a.newEngine(source, observers, logger.With().Str("pairing_id", id).Logger())
	}
	pairingService := service.NewPairingService(
		service.Config{
			Scheme:    cfg.Pairing.Scheme,
			TokenTTL:  cfg.HTTP.TokenTTL,
			Retention: cfg.Pairing.Retention,
		},
		factory,
		tokenizer.NewJWTTokenizer(signKey),
		events.NewWatermillPublisher(a.publisher),
		logger,
	)
	defer pairingService.Close()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           transport.SetupRouter(pairingService, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Str("backend", cfg.Relay.Backend).Msg("serving pairing API")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down")
	return server.Shutdown(shutdownCtx)
}
