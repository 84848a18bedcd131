package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/GoCodeAlone/schemaforge/migration"
	"github.com/GoCodeAlone/schemaforge/schema"
)

func runPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	dryRun := fs.Bool("dry-run", false, "Compute plans without writing documents or history")
	noSmart := fs.Bool("no-smart", false, "Ignore the applied log; treat every latest record as pending")
	format := fs.String("format", "text", "Output format: text or json")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics for this run to a textfile")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl plan [options] [spec-file...]

Plan migrations for each table spec. With no files, every spec in the
configured specs directory is planned. Pending migrations are rewritten in
place; settled tables get a new alter migration.

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
	if *metricsFile != "" {
		p.metrics = migration.NewMetrics("")
	}

	providers, err := p.providers(fs.Args())
	if err != nil {
		return err
	}
	results, err := p.planner(*dryRun, *noSmart).PlanAll(ctx, providers...)
	// A batch fails before any write unless a history write itself failed;
	// then the tables committed before it are reported.
	if err == nil || len(results) > 0 {
		if werr := writeResults(stdout, results, *format); werr != nil && err == nil {
			err = werr
		}
	}
	if p.metrics != nil {
		if merr := p.metrics.WriteTextfile(*metricsFile); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	dryRun := fs.Bool("dry-run", false, "Show what would be registered without writing history")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl register [options] <spec-file>...

Record each table as already present in the database. A settled create
record is stored and no migration document is written; later changes to
the spec produce alter migrations.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("at least one spec file is required")
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

	planner := p.planner(*dryRun, false)
	var results []*migration.Result
	for _, path := range fs.Args() {
		spec, err := schema.LoadFile(path)
		if err != nil {
			return err
		}
		snap, _, err := schema.NewSnapshot(*spec)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		res, err := planner.Register(ctx, snap, path)
		if err != nil {
			return err
		}
		results = append(results, res)
	}
	return writeResults(stdout, results, *format)
}

func checkFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}

// resultView is the JSON shape of a planning result.
type resultView struct {
	Table      string                `json:"table"`
	Source     string                `json:"source,omitempty"`
	State      migration.State       `json:"state"`
	Transition migration.Transition  `json:"transition"`
	Migration  string                `json:"migration,omitempty"`
	Path       string                `json:"path,omitempty"`
	Virtual    bool                  `json:"virtual,omitempty"`
	Apply      []migration.Operation `json:"apply,omitempty"`
	Revert     []migration.Operation `json:"revert,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
}

func viewOf(res *migration.Result) resultView {
	v := resultView{
		Table:      res.Table,
		Source:     res.Source,
		State:      res.State,
		Transition: res.Transition,
		Apply:      res.Apply,
		Revert:     res.Revert,
	}
	if res.Record != nil {
		v.Migration = res.Record.Name
		v.Path = res.Record.Path
		v.Virtual = res.Record.IsVirtual
	}
	for _, w := range res.Warnings {
		v.Warnings = append(v.Warnings, w.Message)
	}
	return v
}

func writeResults(w io.Writer, results []*migration.Result, format string) error {
	if format == "json" {
		views := make([]resultView, 0, len(results))
		for _, res := range results {
			views = append(views, viewOf(res))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No table specs found.")
		return nil
	}
	for _, res := range results {
		writeResultText(w, res)
	}
	return nil
}

func writeResultText(w io.Writer, res *migration.Result) {
	switch res.Transition {
	case migration.TransitionNone:
		fmt.Fprintf(w, "%s: up to date (%s)\n", res.Table, res.State)
	case migration.TransitionDropAlter:
		fmt.Fprintf(w, "%s: %s %s (changes cancelled out)\n", res.Table, res.Transition, res.Record.Name)
	default:
		fmt.Fprintf(w, "%s: %s %s\n", res.Table, res.Transition, res.Record.Name)
		if res.Record.Path != "" {
			fmt.Fprintf(w, "  document: %s\n", res.Record.Path)
		}
		for _, op := range res.Apply {
			fmt.Fprintf(w, "  + %s\n", op)
		}
		for _, op := range res.Revert {
			fmt.Fprintf(w, "  - %s\n", op)
		}
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Message)
	}
}

// stderrf prints a diagnostic that is not part of the command output.
func stderrf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...) //nolint:gosec // G705: CLI diagnostic output
}
