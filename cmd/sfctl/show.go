package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/schemaforge/migration"
	"github.com/GoCodeAlone/schemaforge/store"
)

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl show [options] <table> [migration]

Print the stored plan document of a migration record. Without a migration
name the table's latest record is shown. Registered records have no
document.

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
	if fs.NArg() < 1 || fs.NArg() > 2 {
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
	var rec store.MigrationRecord
	if name := fs.Arg(1); name != "" {
		i := h.Find(name)
		if i < 0 {
			return fmt.Errorf("%w: %s in table %s", store.ErrRecordNotFound, name, table)
		}
		rec = h.Migrations[i]
	} else {
		var ok bool
		if rec, ok = h.Latest(); !ok {
			return fmt.Errorf("%w: table %s has no migration records", store.ErrRecordNotFound, table)
		}
	}
	if rec.IsVirtual || rec.Path == "" {
		return fmt.Errorf("%s is a registered record and has no plan document", rec.Name)
	}

	doc, err := migration.LoadDocument(ctx, p.artifacts, rec.Path)
	if err != nil {
		return fmt.Errorf("load %s: %w", rec.Path, err)
	}
	if sum := doc.Checksum(); rec.Checksum != "" && sum != rec.Checksum {
		p.logger.Warn("plan document differs from its history record",
			"migration", rec.Name, "path", rec.Path, "recorded", rec.Checksum, "document", sum)
	}

	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	kind := "alter"
	if doc.Create {
		kind = "create"
	}
	fmt.Fprintf(stdout, "%s (%s %s, class %s)\n", doc.Name, kind, doc.Table, doc.ClassName)
	fmt.Fprintf(stdout, "  document: %s\n", rec.Path)
	for _, op := range doc.Apply {
		fmt.Fprintf(stdout, "  + %s\n", op)
	}
	for _, op := range doc.Revert {
		fmt.Fprintf(stdout, "  - %s\n", op)
	}
	for _, w := range doc.Warnings {
		fmt.Fprintf(stdout, "  warning: %s\n", w.Message)
	}
	return nil
}
