package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	listKind       string
	listUser       string
	listIncomplete bool
	listLimit      int
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Inspect the audit log",
	Long: `Inspect the audit log of actions.

Subcommands:
  list    List actions (default)
  show    Show one action as YAML
  export  Write actions as a YAML stream

Examples:
  histograph actions
  histograph actions list --kind merge-entities --user alice
  histograph actions list --incomplete
  histograph actions show 7d1c...
  histograph actions export ./audit.yaml --limit 1000`,
	RunE: runListActions,
}

var listActionsCmd = &cobra.Command{
	Use:   "list",
	Short: "List actions, newest first",
	RunE:  runListActions,
}

var showActionCmd = &cobra.Command{
	Use:   "show <action-id>",
	Short: "Show one action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := backend.GetAction(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get action: %w", err)
		}
		if action == nil {
			return fmt.Errorf("action %s not found", args[0])
		}
		return writeYAML(cmd.OutOrStdout(), []models.Action{*action})
	},
}

var exportActionsCmd = &cobra.Command{
	Use:   "export <path|->",
	Short: "Export actions as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportActions,
}

func init() {
	for _, c := range []*cobra.Command{actionsCmd, listActionsCmd, exportActionsCmd} {
		c.Flags().StringVarP(&listKind, "kind", "k", "", "filter by action kind")
		c.Flags().StringVar(&listUser, "by", "", "filter by performedBy")
		c.Flags().BoolVar(&listIncomplete, "incomplete", false, "only actions that were recorded but never performed")
		c.Flags().IntVarP(&listLimit, "limit", "n", db.DefaultActionLimit, "max results")
	}

	actionsCmd.AddCommand(listActionsCmd)
	actionsCmd.AddCommand(showActionCmd)
	actionsCmd.AddCommand(exportActionsCmd)
}

func actionFilter() db.ActionFilter {
	return db.ActionFilter{
		Kind:           models.Kind(listKind),
		PerformedBy:    listUser,
		IncompleteOnly: listIncomplete,
		Limit:          listLimit,
	}
}

func runListActions(cmd *cobra.Command, args []string) error {
	list, err := backend.ListActions(context.Background(), actionFilter())
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}
	printActions(cmd.OutOrStdout(), defaultTheme, list)
	return nil
}

func printActions(w io.Writer, t Theme, list []models.Action) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No actions found.")
		return
	}
	for _, a := range list {
		mark := t.completedStyle().Render("✓")
		if !a.Completed() {
			mark = t.errorStyle().Render("…")
		}
		fmt.Fprintf(w, "%s %s  %-20s %-12s %s\n", mark, a.ID, a.Kind, a.PerformedBy, a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "\n%d actions\n", len(list))
}

func runExportActions(cmd *cobra.Command, args []string) error {
	list, err := backend.ListActions(context.Background(), actionFilter())
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}

	if args[0] == "-" {
		return writeYAML(cmd.OutOrStdout(), list)
	}

	if err := os.MkdirAll(filepath.Dir(args[0]), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := writeYAML(f, list); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d actions to %s\n", len(list), args[0])
	return nil
}

// writeYAML writes one YAML document per action. Keys follow the JSON wire
// names so exports read like API responses.
func writeYAML(w io.Writer, list []models.Action) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, a := range list {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode action %s: %w", a.ID, err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("encode action %s: %w", a.ID, err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("write action %s: %w", a.ID, err)
		}
	}
	return enc.Close()
}
