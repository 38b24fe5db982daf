package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RG7on/data-aggregator/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the CSV snapshot from the current database contents",
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

		outputDir, err := cfg.ResolveOutputDir()
		if err != nil {
			return err
		}

		res, err := export.New(st, logger).Export(cmd.Context(), outputDir, cfg.Global.SharedDriveCSV)
		if err != nil {
			return err
		}

		fmt.Printf("exported %d rows to %s\n", res.RowsExported, res.LocalPath)
		if res.SharedPath != "" {
			if res.SharedOK {
				fmt.Printf("shared copy written to %s\n", res.SharedPath)
			} else {
				fmt.Printf("shared copy to %s failed (see log)\n", res.SharedPath)
			}
		}
		return nil
	},
}
