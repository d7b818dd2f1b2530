package main

import (
	"fmt"

	"github.com/jaam8/election_ledger/internal/cache"
	"github.com/jaam8/election_ledger/internal/config"
	"github.com/jaam8/election_ledger/internal/repository"
	"github.com/jaam8/election_ledger/internal/repository/memory"
	sqliterepo "github.com/jaam8/election_ledger/internal/repository/sqlite"
	tarantoolrepo "github.com/jaam8/election_ledger/internal/repository/tarantool"
	srv "github.com/jaam8/election_ledger/internal/service"
	"github.com/jaam8/election_ledger/pkg/redis"
	"github.com/jaam8/election_ledger/pkg/sqlite"
	"github.com/jaam8/election_ledger/pkg/tarantool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds everything a command needs to talk to the ledger.
type app struct {
	store    repository.Store
	results  cache.ResultsCache
	registry *prometheus.Registry
	service  *srv.ElectionService
	closers  []func() error
}

func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, votes are lost on exit")
		return memory.New(log), nil
	case config.DriverTarantool:
		conn, err := tarantool.New(cfg.Tarantool)
		if err != nil {
			return nil, err
		}
		return tarantoolrepo.New(conn, log), nil
	default:
		if cfg.Sqlite.DataDir == "" {
			log.Warn("SQLITE_DATA_DIR is empty, using in-memory sqlite, votes are lost on exit")
		}
		db, err := sqlite.New(cfg.Sqlite)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		store, err := sqliterepo.New(db, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if cfg.Redis.Enabled() {
		client, err := redis.New(cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.results = cache.NewRedis(client, cfg.CacheTTL)
		a.closers = append(a.closers, client.Close)
	} else {
		a.results = cache.NewMemory()
	}

	a.service = srv.New(a.store, a.results, srv.NewMetrics(a.registry), cfg.Ledger, log)
	log.Info("ledger ready",
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("redis", cfg.Redis.Enabled()))
	return a, nil
}

func (a *app) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
