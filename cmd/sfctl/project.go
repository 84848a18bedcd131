package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/GoCodeAlone/schemaforge/artifact"
	"github.com/GoCodeAlone/schemaforge/config"
	"github.com/GoCodeAlone/schemaforge/migration"
	"github.com/GoCodeAlone/schemaforge/store"
)

// project bundles everything a command needs from the configuration.
type project struct {
	cfg       *config.Config
	logger    *slog.Logger
	history   *store.FileHistoryStore
	artifacts artifact.Store
	applied   *migration.SQLAppliedLog
	metrics   *migration.Metrics
}

func openProject(ctx context.Context, configPath string) (*project, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	p := &project{
		cfg:     cfg,
		logger:  logger,
		history: store.NewFileHistoryStore(cfg.HistoryPath()),
	}

	switch cfg.Artifacts.Backend {
	case "s3":
		client, err := artifact.NewS3Client(ctx, cfg.Artifacts.Region, cfg.Artifacts.Endpoint)
		if err != nil {
			return nil, err
		}
		p.artifacts = artifact.NewS3Store(client, cfg.Artifacts.Bucket, cfg.Artifacts.Prefix)
	default:
		p.artifacts = artifact.NewLocalStore(cfg.Dir())
	}

	if cfg.UsesAppliedLog() {
		dsn := cfg.AppliedLog.DSN
		dialect := migration.Dialect(cfg.AppliedLog.Driver)
		if dialect == migration.DialectSQLite {
			dsn = cfg.Resolve(dsn)
		}
		l, err := migration.OpenAppliedLog(dialect, dsn, cfg.AppliedLog.Table, cfg.AppliedLog.Column)
		if err != nil {
			return nil, err
		}
		p.applied = l
	}
	return p, nil
}

func (p *project) Close() {
	if p.applied != nil {
		if err := p.applied.Close(); err != nil {
			p.logger.Warn("close applied log", "err", err)
		}
	}
}

// planner builds a Planner; smart mode follows the config unless noSmart.
func (p *project) planner(dryRun, noSmart bool) *migration.Planner {
	opts := migration.Options{
		Smart:     p.cfg.Smart && !noSmart,
		DryRun:    dryRun,
		OutputDir: p.cfg.Output,
	}
	popts := []migration.PlannerOption{
		migration.WithLogger(p.logger),
		migration.WithEmitter(migration.StoreEmitter{Store: p.artifacts}),
	}
	if p.applied != nil {
		popts = append(popts, migration.WithAppliedLog(p.applied))
	}
	if p.metrics != nil {
		popts = append(popts, migration.WithMetrics(p.metrics))
	}
	return migration.NewPlanner(p.history, opts, popts...)
}

// providers returns one provider per path, or the whole spec directory when
// no paths are given.
func (p *project) providers(paths []string) ([]migration.SpecProvider, error) {
	if len(paths) == 0 {
		return migration.DirProviders(p.cfg.SpecsDir())
	}
	out := make([]migration.SpecProvider, len(paths))
	for i, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("spec file %s: %w", path, err)
		}
		out[i] = migration.FileProvider{Path: path}
	}
	return out, nil
}
