package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/models"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [kind]",
	Short: "Print the JSON schema of action details",
	Long: `Print the JSON schema that details of an action kind must satisfy.
Without a kind, prints the schemas of every kind keyed by kind.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: kindNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return printSchema(cmd.OutOrStdout(), actions.Schemas())
		}
		s, err := actions.Schema(models.Kind(args[0]))
		if err != nil {
			return err
		}
		return printSchema(cmd.OutOrStdout(), s)
	},
}

func kindNames() []string {
	names := make([]string, len(models.Kinds))
	for i, k := range models.Kinds {
		names[i] = string(k)
	}
	return names
}

func printSchema(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
