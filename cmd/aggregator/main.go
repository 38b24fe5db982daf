// Command aggregator collects KPI metrics from configured sources into a
// local SQLite database and publishes a CSV snapshot for dashboards.
package main

import "os"

// exitCode lets subcommands report partial failure (exit 1) distinctly
// from a command error (exit 2).
var exitCode int

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
	os.Exit(exitCode)
}
