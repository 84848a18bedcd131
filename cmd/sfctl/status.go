package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"path"
	"strings"

	"github.com/GoCodeAlone/schemaforge/artifact"
	"github.com/GoCodeAlone/schemaforge/migration"
	"github.com/GoCodeAlone/schemaforge/store"
)

type tableStatus struct {
	Table   string          `json:"table"`
	State   migration.State `json:"state"`
	Latest  string          `json:"latest,omitempty"`
	Applied []string        `json:"applied,omitempty"`
	Pending []string        `json:"pending,omitempty"`
}

type statusReport struct {
	Tables []tableStatus `json:"tables"`
	// Orphans are documents under the output directory that no record points to.
	Orphans []artifact.Artifact `json:"orphans,omitempty"`
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", "schemaforge.yaml", "Path to the project config file")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sfctl status [options]

Show the planning state of every tracked table. When an applied log is
configured, records are split into applied and pending. Plan documents in
the output directory that no history record points to are listed as
orphans.

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

	histories, err := p.history.All(ctx)
	if err != nil {
		return err
	}

	// One read of the applied log serves every table.
	applied := migration.NewAppliedSet()
	if p.applied != nil {
		logged, err := p.applied.Applied(ctx)
		if err != nil {
			return err
		}
		for _, m := range logged {
			applied[m.Name] = true
		}
	}
	planner := migration.NewPlanner(p.history, migration.Options{Smart: p.cfg.Smart},
		migration.WithLogger(p.logger), migration.WithAppliedLog(applied))

	report := statusReport{Tables: make([]tableStatus, 0, len(histories))}
	for i := range histories {
		h := &histories[i]
		state, err := planner.State(ctx, h)
		if err != nil {
			return err
		}
		st := tableStatus{Table: h.Table, State: state}
		if latest, ok := h.Latest(); ok {
			st.Latest = latest.Name
		}
		for _, rec := range h.Migrations {
			if rec.IsVirtual || applied[rec.Name] {
				st.Applied = append(st.Applied, rec.Name)
			} else {
				st.Pending = append(st.Pending, rec.Name)
			}
		}
		report.Tables = append(report.Tables, st)
	}

	if report.Orphans, err = p.orphans(ctx, histories); err != nil {
		return err
	}

	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if len(report.Tables) == 0 {
		fmt.Fprintln(stdout, "No tables tracked.")
	} else {
		fmt.Fprintf(stdout, "%-20s %-19s %-36s %-8s %s\n", "TABLE", "STATE", "LATEST", "APPLIED", "PENDING")
		fmt.Fprintf(stdout, "%-20s %-19s %-36s %-8s %s\n", "-----", "-----", "------", "-------", "-------")
		for _, st := range report.Tables {
			fmt.Fprintf(stdout, "%-20s %-19s %-36s %-8d %d\n", st.Table, st.State, dash(st.Latest), len(st.Applied), len(st.Pending))
		}
	}
	if len(report.Orphans) > 0 {
		fmt.Fprintf(stdout, "\nOrphaned documents (%d):\n", len(report.Orphans))
		for _, a := range report.Orphans {
			fmt.Fprintf(stdout, "  %-56s %d bytes\n", a.Key, a.Size)
		}
	}
	return nil
}

// orphans lists the plan documents under the output directory that no
// history record references. Nothing is scanned without an output directory.
func (p *project) orphans(ctx context.Context, histories []store.TableHistory) ([]artifact.Artifact, error) {
	if p.cfg.Output == "" {
		return nil, nil
	}
	known := make(map[string]bool)
	for _, h := range histories {
		for _, rec := range h.Migrations {
			if rec.Path != "" {
				known[path.Clean(rec.Path)] = true
			}
		}
	}
	stored, err := p.artifacts.List(ctx, strings.TrimSuffix(p.cfg.Output, "/")+"/")
	if err != nil {
		return nil, err
	}
	var out []artifact.Artifact
	for _, a := range stored {
		if path.Ext(a.Key) != ".json" || known[path.Clean(a.Key)] {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
