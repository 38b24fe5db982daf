package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <csv-path>",
	Short: "Import historical rows from a legacy CSV file",
	Long: `migrate imports rows from a CSV produced before the database
existed. Rows already present are deduplicated, so re-running the
import is harmless.`,
	Args: cobra.ExactArgs(1),
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

		imported, err := st.MigrateFromCSV(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("imported %d rows from %s\n", imported, args[0])
		return nil
	},
}
