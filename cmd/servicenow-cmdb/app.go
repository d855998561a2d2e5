package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/logger"
	"servicenow-cmdb-integration/internal/metrics"
	"servicenow-cmdb-integration/internal/notify"
)

// app bundles the ambient services one command run needs.
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	publisher notify.Publisher
}

// newApp loads configuration and starts logging, metrics and notification.
// Commands that never call ServiceNow pass requireServiceNow=false.
func newApp(opts *globalOptions, requireServiceNow bool) (*app, error) {
	load := config.Load
	if !requireServiceNow {
		load = config.LoadForClassifier
	}
	cfg, err := load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyOverrides(opts.logLevel, opts.classifierURL, opts.metricsTextfile, opts.debug); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics service: %w", err)
	}

	publisher, err := notify.New(cfg.Notify, log)
	if err != nil {
		// events are best effort
		log.Warn("notifications disabled", "driver", cfg.Notify.Driver, "error", err)
		publisher = notify.Nop{}
	}

	return &app{
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		publisher: publisher,
	}, nil
}

// close flushes metrics and releases connections. It runs on success and failure.
func (a *app) close() {
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Error("failed to write metrics", "path", a.cfg.Metrics.Textfile, "error", err)
		}
	}
	a.publisher.Close()
	_ = a.logger.Sync()
}
