package main

import (
	"context"
	"fmt"
	"os"

	"sakhi/internal/backend"
	"sakhi/internal/config"
	"sakhi/internal/gateway"
	"sakhi/internal/identity"
	"sakhi/internal/server"
	"sakhi/internal/store"
	"sakhi/internal/telemetry"
	"sakhi/internal/voice"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	provider := identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityAPIKey, logger)
	gw := gateway.New(provider, st, logger)

	be, err := backend.New(cfg, logger, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize backend: %w", err)
	}

	// Voice input is optional; without credentials the endpoint reports
	// the feature as unavailable.
	var transcriber server.Transcriber
	if cfg.GoogleCredentialsFile != "" {
		t, err := voice.NewTranscriber(ctx, cfg.GoogleCredentialsFile, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize transcriber: %w", err)
		}
		defer t.Close()
		transcriber = t
	}

	logger.Info("starting sakhi", "backend", cfg.Backend, "addr", cfg.ListenAddr)
	srv := server.New(cfg, logger, tracer, st, gw, be, transcriber)
	return srv.Run()
}
