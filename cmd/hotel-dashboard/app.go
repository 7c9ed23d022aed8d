package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/config"
	"github.com/sieffosman/hotel-dashboard/internal/logger"
	"github.com/sieffosman/hotel-dashboard/internal/roomclient"
	"github.com/sieffosman/hotel-dashboard/internal/service"
)

// app holds the wired dependencies of one command run.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	svc      *service.RoomService
}

// newApp loads configuration, applies flag overrides and wires the room
// client stack. A non-empty logFormat replaces the configured format.
func newApp(opts *rootOptions, logFormat string) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.apiURL != "" {
		if cfg.API.MediaBaseURL == cfg.API.BaseURL {
			cfg.API.MediaBaseURL = opts.apiURL
		}
		cfg.API.BaseURL = opts.apiURL
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if logFormat == "" {
		logFormat = cfg.Log.Format
	}

	log, err := logger.NewLogger(cfg.Log.Level, logFormat, appName)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := roomclient.New(cfg.API, log, roomclient.NewMetrics(registry))
	return &app{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		svc:      service.NewRoomService(client, log),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
