package main

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/schemaforge/migration"
	"github.com/GoCodeAlone/schemaforge/schema"
)

func runDiff(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	format := fs.String("format", "text", "Output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl diff [options] <old-spec> <new-spec>

Compare two versions of a table spec and show the operations that turn the
old table into the new one, along with their revert. History is not read
or written.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("exactly two spec files are required")
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	oldSnap, err := snapshotFile(fs.Arg(0))
	if err != nil {
		return err
	}
	newSnap, err := snapshotFile(fs.Arg(1))
	if err != nil {
		return err
	}
	if oldSnap.Table() != newSnap.Table() {
		return fmt.Errorf("specs describe different tables: %s and %s", oldSnap.Table(), newSnap.Table())
	}

	delta := migration.Diff(oldSnap, newSnap)
	apply, revert, err := migration.BuildAlter(newSnap.Table(), delta)
	if err != nil {
		return err
	}

	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"table":  newSnap.Table(),
			"delta":  delta,
			"apply":  apply,
			"revert": revert,
		})
	}

	if !delta.HasChange() {
		fmt.Fprintf(stdout, "%s: no changes\n", newSnap.Table())
		return nil
	}
	fmt.Fprintf(stdout, "%s: %d operation(s)\n", newSnap.Table(), len(apply))
	for _, op := range apply {
		fmt.Fprintf(stdout, "  + %s\n", op)
	}
	for _, op := range revert {
		fmt.Fprintf(stdout, "  - %s\n", op)
	}
	return nil
}

func snapshotFile(path string) (*schema.Snapshot, error) {
	spec, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	snap, warnings, err := schema.NewSnapshot(*spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, w := range warnings {
		stderrf("warning: %s: %s\n", path, w.Message)
	}
	return snap, nil
}
