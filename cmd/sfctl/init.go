package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoCodeAlone/schemaforge/config"
	"github.com/GoCodeAlone/schemaforge/schema"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	dir := fs.String("dir", ".", "Project directory")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	example := fs.Bool("example", true, "Write an example table spec")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl init [options]

Create %s with default settings and the spec and output directories.

Options:
`, config.DefaultFile)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgPath := filepath.Join(*dir, config.DefaultFile)
	if _, err := os.Stat(cfgPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}

	cfg := config.Default()
	for _, d := range []string{cfg.Specs, cfg.Output, filepath.Dir(cfg.History)} {
		if err := os.MkdirAll(filepath.Join(*dir, d), 0o750); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	if err := cfg.Write(cfgPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", cfgPath)

	if *example {
		path := filepath.Join(*dir, cfg.Specs, "users.yaml")
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		f, err := os.Create(path) //nolint:gosec // G304: path built from CLI flag
		if err != nil {
			return fmt.Errorf("create example spec: %w", err)
		}
		defer f.Close()
		if err := schema.Encode(f, exampleSpec(), schema.FormatYAML); err != nil {
			return fmt.Errorf("write example spec: %w", err)
		}
		fmt.Fprintf(stdout, "Wrote %s\n", path)
	}
	return nil
}

func exampleSpec() schema.Spec {
	return schema.Spec{
		Table:      "users",
		Model:      "User",
		Timestamps: true,
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeBigIncrements},
			{Name: "name", Type: schema.TypeString, TypeParams: schema.TypeParams{Length: 120}},
			{Name: "email", Type: schema.TypeString, Unique: true},
		},
	}
}
