package main

import (
	"fmt"
	"io"
	"os"
)

var version = "dev"

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

var commands = map[string]func([]string) error{
	"init":         runInit,
	"plan":         runPlan,
	"diff":         runDiff,
	"register":     runRegister,
	"history":      runHistory,
	"forget":       runForget,
	"status":       runStatus,
	"show":         runShow,
	"mark-applied": runMarkApplied,
	"watch":        runWatch,
}

func usage() {
	fmt.Fprintf(os.Stderr, `sfctl - schema migration planner (version %s)

Usage:
  sfctl <command> [options]

Commands:
  init          Create schemaforge.yaml and the spec/output directories
  plan          Plan migrations for changed table specs and update history
  diff          Compare two spec files and show the operations between them
  register      Record existing tables as settled without generating a migration
  history       Show tracked tables and their migration records
  forget        Remove a table, or one of its records, from history
  status        Show each table's planning state and which records are applied
  show          Print the stored plan document of a migration record
  mark-applied  Record migrations as executed in the configured applied log
  watch         Re-plan spec files as they change

Run 'sfctl <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd) //nolint:gosec // G705: CLI error output
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err) //nolint:gosec // G705: CLI error output
		os.Exit(1)
	}
}
