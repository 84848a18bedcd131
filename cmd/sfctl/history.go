package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/schemaforge/migration"
	"github.com/GoCodeAlone/schemaforge/store"
)

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl history [options] [table]

List tracked tables, or the migration records of one table.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	ctx := context.Background()
	p, err := openProject(ctx, *configPath)
	if err != nil {
		return err
	}
	defer p.Close()

	var histories []store.TableHistory
	if table := fs.Arg(0); table != "" {
		h, err := p.history.Get(ctx, table)
		if err != nil {
			return err
		}
		histories = []store.TableHistory{*h}
	} else if histories, err = p.history.All(ctx); err != nil {
		return err
	}

	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(histories)
	}

	if len(histories) == 0 {
		fmt.Fprintln(stdout, "No tables tracked.")
		return nil
	}
	fmt.Fprintf(stdout, "%-20s %-36s %-11s %s\n", "TABLE", "MIGRATION", "KIND", "CHECKSUM")
	fmt.Fprintf(stdout, "%-20s %-36s %-11s %s\n", "-----", "---------", "----", "--------")
	for _, h := range histories {
		if len(h.Migrations) == 0 {
			fmt.Fprintf(stdout, "%-20s %-36s %-11s %s\n", h.Table, "-", "-", "-")
			continue
		}
		for _, rec := range h.Migrations {
			fmt.Fprintf(stdout, "%-20s %-36s %-11s %s\n", h.Table, rec.Name, recordKind(rec), rec.Checksum)
		}
	}
	return nil
}

func recordKind(rec store.MigrationRecord) string {
	switch {
	case rec.IsVirtual:
		return "registered"
	case rec.IsCreate:
		return "create"
	default:
		return "alter"
	}
}

func runForget(args []string) error {
	fs := flag.NewFlagSet("forget", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	name := fs.String("migration", "", "Forget only this migration record")
	discard := fs.Bool("discard", false, "Also delete the forgotten migration documents")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl forget [options] <table>

Remove a table's history, or a single record from it. The next plan starts
from whatever history remains. The first record of a table can only be
forgotten once it is the only one; forget the later records or the whole
table first.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("a table name is required")
	}
	table := fs.Arg(0)

	ctx := context.Background()
	p, err := openProject(ctx, *configPath)
	if err != nil {
		return err
	}
	defer p.Close()

	h, err := p.history.Get(ctx, table)
	if err != nil {
		return err
	}
	var forgotten []store.MigrationRecord
	if *name != "" {
		i := h.Find(*name)
		if i < 0 {
			return fmt.Errorf("%w: %s in table %s", store.ErrRecordNotFound, *name, table)
		}
		forgotten = append(forgotten, h.Migrations[i])
		err = p.history.ForgetMigration(ctx, table, *name)
	} else {
		forgotten = h.Migrations
		err = p.history.Forget(ctx, table)
	}
	if err != nil {
		return err
	}

	if *discard {
		emitter := migration.StoreEmitter{Store: p.artifacts}
		for _, rec := range forgotten {
			if rec.IsVirtual || rec.Path == "" {
				continue
			}
			if err := emitter.Discard(ctx, rec.Path); err != nil {
				return err
			}
		}
	}

	if *name != "" {
		fmt.Fprintf(stdout, "Forgot %s from %s\n", *name, table)
	} else {
		fmt.Fprintf(stdout, "Forgot %s (%d record(s))\n", table, len(forgotten))
	}
	return nil
}
