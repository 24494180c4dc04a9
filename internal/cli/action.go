package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	linkContext  []string
	linkLocation string
	mergeInto    string
	bulkLanguage string
	drainBatch   int
	noProgress   bool
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Perform an audited action",
	Long: `Perform one of the audited graph actions.

Each action is recorded in the audit log before the graph changes and
marked as performed once the change is committed.

Examples:
  histograph action link-entity e1 r1 --context en:2-5,10-20 --context fr:4-8
  histograph action link-entity e1 r1 --context en:0-4 --location caption
  histograph action unlink-entity e1 r1
  histograph action change-entity-type e1 person
  histograph action merge-entities e1 e2 --into e3
  histograph action link-entity-bulk e1 "Jean Jaurès" --lang fr
  histograph action unlink-entity-bulk e1 --batch-size 50
  histograph action apply link-entity details.json`,
}

var linkEntityCmd = &cobra.Command{
	Use:   "link-entity <entity-uuid> <resource-uuid>",
	Short: "Link an entity to a resource it appears in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mentions, err := parseContext(linkContext)
		if err != nil {
			return err
		}
		return perform(cmd, &models.LinkEntityDetails{
			EntityUUID:      args[0],
			ResourceUUID:    args[1],
			Context:         mentions,
			ContextLocation: linkLocation,
		})
	},
}

var unlinkEntityCmd = &cobra.Command{
	Use:   "unlink-entity <entity-uuid> <resource-uuid>",
	Short: "Remove the appearance of an entity in a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return perform(cmd, &models.UnlinkEntityDetails{EntityUUID: args[0], ResourceUUID: args[1]})
	},
}

var changeEntityTypeCmd = &cobra.Command{
	Use:   "change-entity-type <entity-uuid> <new-type>",
	Short: "Change the type of an entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return perform(cmd, &models.ChangeEntityTypeDetails{EntityUUID: args[0], NewType: args[1]})
	},
}

var mergeEntitiesCmd = &cobra.Command{
	Use:   "merge-entities <entity-uuid>... --into <entity-uuid>",
	Short: "Merge entities into another one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return perform(cmd, &models.MergeEntitiesDetails{OriginalEntityUUIDList: args, NewEntityUUID: mergeInto})
	},
}

var linkEntityBulkCmd = &cobra.Command{
	Use:   "link-entity-bulk <entity-uuid> <keyphrase>",
	Short: "Link an entity to every resource containing a keyphrase",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return perform(cmd, &models.LinkEntityBulkDetails{EntityUUID: args[0], Keyphrase: args[1], LanguageCode: bulkLanguage})
	},
}

var unlinkEntityBulkCmd = &cobra.Command{
	Use:   "unlink-entity-bulk <entity-uuid>",
	Short: "Remove every appearance of an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnlinkEntityBulk,
}

var applyCmd = &cobra.Command{
	Use:   "apply <kind> [file]",
	Short: "Perform an action from JSON details (file or stdin)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if len(args) == 2 && args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open details: %w", err)
			}
			defer f.Close()
			in = f
		}
		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read details: %w", err)
		}
		out, err := backend.PerformRaw(context.Background(), args[0], json.RawMessage(raw))
		return printOutcome(cmd.OutOrStdout(), defaultTheme, out, err)
	},
}

func init() {
	linkEntityCmd.Flags().StringArrayVarP(&linkContext, "context", "c", nil, "mention offsets as lang:start-end[,start-end...] (repeatable)")
	linkEntityCmd.Flags().StringVar(&linkLocation, "location", "", "field the offsets were measured in: title, caption or content")

	mergeEntitiesCmd.Flags().StringVar(&mergeInto, "into", "", "entity that absorbs the others")
	_ = mergeEntitiesCmd.MarkFlagRequired("into")

	linkEntityBulkCmd.Flags().StringVarP(&bulkLanguage, "lang", "l", "", "language of the full-text index to search")
	_ = linkEntityBulkCmd.MarkFlagRequired("lang")

	unlinkEntityBulkCmd.Flags().IntVar(&drainBatch, "batch-size", 0, "appearances removed per batch (default from config)")
	unlinkEntityBulkCmd.Flags().BoolVar(&noProgress, "no-progress", false, "print batches instead of the progress bar")

	actionCmd.AddCommand(linkEntityCmd)
	actionCmd.AddCommand(unlinkEntityCmd)
	actionCmd.AddCommand(changeEntityTypeCmd)
	actionCmd.AddCommand(mergeEntitiesCmd)
	actionCmd.AddCommand(linkEntityBulkCmd)
	actionCmd.AddCommand(unlinkEntityBulkCmd)
	actionCmd.AddCommand(applyCmd)
}

func perform(cmd *cobra.Command, details models.Details) error {
	out, err := backend.Perform(context.Background(), details, 0, nil)
	return printOutcome(cmd.OutOrStdout(), defaultTheme, out, err)
}

func runUnlinkEntityBulk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	details := &models.UnlinkEntityBulkDetails{EntityUUID: args[0]}
	w := cmd.OutOrStdout()

	batchSize := drainBatch
	if batchSize <= 0 {
		batchSize = cfg.BulkBatchSize
	}

	if !noProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		total, ok, err := backend.CountAppearances(ctx, details.EntityUUID)
		if err != nil {
			return fmt.Errorf("count appearances: %w", err)
		}
		if ok {
			out, err := runDrainProgress(ctx, details.EntityUUID, total, func(ctx context.Context, observe actions.BatchObserver) (*actions.Outcome, error) {
				return backend.Perform(ctx, details, batchSize, observe)
			})
			return printOutcome(w, defaultTheme, out, err)
		}
	}

	var observe actions.BatchObserver
	if verbose {
		observe = func(bp actions.BatchProgress) {
			fmt.Fprintf(w, "batch %d: removed %d (total %d)\n", bp.Batch, bp.Removed, bp.Total)
		}
	}
	out, err := backend.Perform(ctx, details, batchSize, observe)
	return printOutcome(w, defaultTheme, out, err)
}

// parseContext turns flags like "en:2-5,10-20" into a mention context.
// A language may be given more than once; its intervals accumulate.
func parseContext(args []string) (models.Context, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := models.Context{}
	for _, arg := range args {
		lang, ranges, ok := strings.Cut(arg, ":")
		lang = strings.ToLower(strings.TrimSpace(lang))
		if !ok || lang == "" {
			return nil, fmt.Errorf("context %q: expected lang:start-end", arg)
		}
		if _, exists := out[lang]; !exists {
			out[lang] = []models.Interval{}
		}
		for _, r := range strings.Split(ranges, ",") {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			startStr, endStr, ok := strings.Cut(r, "-")
			if !ok {
				return nil, fmt.Errorf("context %q: interval %q: expected start-end", arg, r)
			}
			start, err := strconv.Atoi(strings.TrimSpace(startStr))
			if err != nil {
				return nil, fmt.Errorf("context %q: interval %q: %w", arg, r, err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(endStr))
			if err != nil {
				return nil, fmt.Errorf("context %q: interval %q: %w", arg, r, err)
			}
			out[lang] = append(out[lang], models.Interval{start, end})
		}
	}
	return out, nil
}
