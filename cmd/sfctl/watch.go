package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/schemaforge/migration"
	"github.com/GoCodeAlone/schemaforge/schema"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	debounce := fs.Duration("debounce", 500*time.Millisecond, "Quiet period before a changed spec is planned")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl watch [options]

Plan the whole specs directory once, then re-plan each spec file whenever
its content changes. Stops on interrupt.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openProject(ctx, *configPath)
	if err != nil {
		return err
	}
	defer p.Close()

	planner := p.planner(false, false)
	providers, err := p.providers(nil)
	if err != nil {
		return err
	}
	results, err := planner.PlanAll(ctx, providers...)
	if werr := writeResults(stdout, results, "text"); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}

	w := schema.NewWatcher(p.cfg.SpecsDir(), func(evt schema.SpecChangeEvent) {
		res, err := replan(ctx, planner, evt.Path)
		if err != nil {
			p.logger.Error("plan failed", "path", evt.Path, "err", err)
			return
		}
		writeResultText(stdout, res)
	}, schema.WithWatchDebounce(*debounce), schema.WithWatchLogger(p.logger))
	if err := w.Start(); err != nil {
		return err
	}
	p.logger.Info("watching specs", "dir", p.cfg.SpecsDir())

	<-ctx.Done()
	return w.Stop()
}

func replan(ctx context.Context, planner *migration.Planner, path string) (*migration.Result, error) {
	spec, err := migration.FileProvider{Path: path}.Spec()
	if err != nil {
		return nil, err
	}
	snap, _, err := schema.NewSnapshot(*spec)
	if err != nil {
		return nil, err
	}
	return planner.Plan(ctx, snap, path)
}
