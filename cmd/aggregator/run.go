package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/RG7on/data-aggregator/pkg/docgen"
	"github.com/RG7on/data-aggregator/pkg/export"
	"github.com/RG7on/data-aggregator/pkg/ingest"
	"github.com/RG7on/data-aggregator/pkg/pipeline"
	"github.com/RG7on/data-aggregator/pkg/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full aggregation pass over all enabled workers",
	Long: `run executes every enabled worker once, persists the results, and
refreshes the CSV snapshot. Exit code 0 means all workers succeeded,
1 means at least one worker failed, 2 means the run itself could not
start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		outputDir, err := cfg.ResolveOutputDir()
		if err != nil {
			return err
		}

		docs := docgen.New(filepath.Join(outputDir, docgen.Filename), nil, logger)
		adapter := ingest.New(ingest.Config{Store: st, Docs: docs, Logger: logger})
		exporter := export.New(st, logger)

		registry := worker.NewRegistry()
		registry.Register(worker.ExampleWorker{})

		p := pipeline.New(cfg, st, adapter, exporter, registry, logger)
		summary, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		if !summary.AllSucceeded() {
			exitCode = 1
		}
		return nil
	},
}
