package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database statistics and the latest result per report",
	Args:  cobra.NoArgs,
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

		stats, err := st.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("database: %s (%.2f MB)\n", st.Path(), float64(stats.SizeBytes)/(1024*1024))
		fmt.Printf("snapshot rows: %d\n", stats.SnapshotRows)
		fmt.Printf("scrape log rows: %d\n", stats.ScrapeLogRows)
		if stats.OldestDate != "" {
			fmt.Printf("date range: %s .. %s\n", stats.OldestDate, stats.NewestDate)
		}

		entries, err := st.LatestScrapeStatus(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no scrapes recorded yet")
			return nil
		}

		fmt.Println()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tREPORT\tSTATUS\tROWS\tWHEN")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.Source, e.ReportLabel, e.Status, e.RowCount, e.Timestamp)
		}
		return w.Flush()
	},
}
