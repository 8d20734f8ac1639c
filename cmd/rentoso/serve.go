package main

import (
	"context"

	"github.com/kochabx/rentoso/app"
	"github.com/kochabx/rentoso/config"
	"github.com/kochabx/rentoso/log"
)

func serve(ctx context.Context, configPath string, watch bool) error {
	cfg, loader, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := log.NewConfig(cfg.Log)
	if err != nil {
		return err
	}
	log.SetGlobalLogger(logger)

	d, err := build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return err
	}

	if watch {
		loader.OnChange(func() {
			logger.Warn().Msg("configuration changed on disk, restart to apply")
		})
		if err := loader.Watch(); err != nil {
			logger.Warn().Err(err).Msg("config watch disabled")
		}
	}

	logger.Info().
		Str("version", Version).
		Str("backend", cfg.Backend.Mode).
		Str("preset", cfg.Backend.Preset).
		Msg("starting rentoso")

	a := app.New(append(d.options(),
		app.WithContext(ctx),
		app.WithShutdownTimeout(cfg.Shutdown),
		app.WithLogger(logger),
	)...)
	return a.Start()
}
