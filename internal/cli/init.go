package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initWipe bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database schema",
	Long: `Define tables, indexes and analyzers for the configured languages.

The schema is applied on every local command; init exists to prepare a
fresh database explicitly. --wipe deletes all data first and keeps the
schema, which is meant for test databases.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbClient == nil {
			return fmt.Errorf("init works on the database directly; drop --remote/--server")
		}
		ctx := context.Background()
		if initWipe {
			if err := dbClient.WipeData(ctx); err != nil {
				return fmt.Errorf("wipe data: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wiped all data.")
		}
		if err := dbClient.InitSchema(ctx, cfg.Languages); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema ready for languages %v\n", cfg.Languages)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initWipe, "wipe", false, "delete all data before initializing")
}
