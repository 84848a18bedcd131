package main

import (
	"context"
	"flag"
	"fmt"
)

func runMarkApplied(args []string) error {
	fs := flag.NewFlagSet("mark-applied", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	all := fs.Bool("all", false, "Mark every tracked migration as applied")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl mark-applied [options] [migration...]

Record migrations as executed in the configured applied log, as a single
new batch. Names already present are skipped. Requires applied_log.driver.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*all && fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("migration names or --all are required")
	}

	ctx := context.Background()
	p, err := openProject(ctx, *configPath)
	if err != nil {
		return err
	}
	defer p.Close()
	if p.applied == nil {
		return fmt.Errorf("no applied log configured (set applied_log.driver)")
	}

	names := fs.Args()
	if *all {
		histories, err := p.history.All(ctx)
		if err != nil {
			return err
		}
		for _, h := range histories {
			for _, rec := range h.Migrations {
				if !rec.IsVirtual {
					names = append(names, rec.Name)
				}
			}
		}
	}

	if err := p.applied.EnsureTable(ctx); err != nil {
		return err
	}
	batch, err := p.applied.Record(ctx, names...)
	if err != nil {
		return err
	}
	if batch == 0 {
		fmt.Fprintln(stdout, "Nothing to record: every migration is already applied")
		return nil
	}
	fmt.Fprintf(stdout, "Recorded batch %d\n", batch)
	return nil
}
