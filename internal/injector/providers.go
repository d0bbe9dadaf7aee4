package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/football/internal/config"
	"github.com/zeusync/football/internal/core/dump"
	"github.com/zeusync/football/internal/core/events/bus"
	"github.com/zeusync/football/internal/core/observability/log"
	"github.com/zeusync/football/internal/core/observability/metrics"
	"github.com/zeusync/football/internal/server"
)

// App is the fully wired service.
type App struct {
	Server   *server.Server
	Logger   log.Log
	Recorder *dump.Recorder       // nil when dumps are off
	Metrics  *metrics.Snapshotter // nil when metrics are off
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideBus,
	ProvideMetrics,
	ProvideRecorder,
	ProvideServer,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.LogLevel), log.WithFormat(log.Format(cfg.LogFormat)))
}

func ProvideBus() bus.EventBus { return bus.New() }

// ProvideMetrics attaches a collector backed by an in-process meter provider.
func ProvideMetrics(cfg config.Config, b bus.EventBus, logger log.Log) (*metrics.Snapshotter, func(), error) {
	if !cfg.Metrics.Enabled {
		return nil, func() {}, nil
	}
	snap := metrics.NewSnapshotter()
	c, err := metrics.New(metrics.WithMeterProvider(snap.Provider()))
	if err != nil {
		_ = snap.Shutdown(context.Background())
		return nil, nil, err
	}
	if err = c.Attach(b); err != nil {
		_ = snap.Shutdown(context.Background())
		return nil, nil, err
	}
	logger.Info("Metrics enabled")
	return snap, func() {
		c.Detach()
		_ = snap.Shutdown(context.Background())
	}, nil
}

// ProvideRecorder opens the dump store and records episodes from the bus.
func ProvideRecorder(cfg config.Config, b bus.EventBus, logger log.Log) (*dump.Recorder, func(), error) {
	if !cfg.Dump.Enabled() {
		return nil, func() {}, nil
	}
	store, err := dump.Open(cfg.Dump.LogDir)
	if err != nil {
		return nil, nil, err
	}
	rec, err := dump.NewRecorder(cfg.Dump, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if err = rec.Attach(b); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return rec, func() {
		rec.Detach()
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close dump store", log.Error(err))
		}
	}, nil
}

func ProvideServer(cfg config.Config, b bus.EventBus, logger log.Log, snap *metrics.Snapshotter) *server.Server {
	var opts []server.Option
	if snap != nil {
		opts = append(opts, server.WithMetricsHandler(snap))
	}
	return server.NewServer(cfg.Server, cfg.Env, b, logger, opts...)
}
