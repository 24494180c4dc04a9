package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/client"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// formatResults renders one line per result.
func formatResults(t Theme, results []models.Result) string {
	var b strings.Builder
	for _, r := range results {
		if r.Success {
			b.WriteString(t.completedStyle().Render("✓") + " " + r.Message + "\n")
		} else {
			b.WriteString(t.errorStyle().Render("✗") + " " + r.Message + "\n")
		}
	}
	return b.String()
}

// printOutcome writes an outcome and returns the error the command should
// exit with. A not-found outcome is reported but is not a command failure
// of its own; the error still sets the exit code.
func printOutcome(w io.Writer, t Theme, out *actions.Outcome, err error) error {
	if out != nil {
		fmt.Fprint(w, formatResults(t, out.Results))
		if out.Action != nil {
			state := "performed"
			if !out.Performed {
				state = "not performed"
			}
			fmt.Fprintln(w, t.hintStyle().Render(fmt.Sprintf("action %s (%s) %s", out.Action.ID, out.Action.Kind, state)))
		}
	}
	if err == nil {
		return nil
	}

	var verr *actions.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(w, t.errorStyle().Render("invalid "+string(verr.Kind)+" details:"))
		for _, f := range verr.Fields {
			fmt.Fprintf(w, "  • %s: %s\n", f.Field, f.Problem)
		}
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		for _, f := range apiErr.Body.Fields {
			fmt.Fprintf(w, "  • %s: %s\n", f.Field, f.Problem)
		}
	}

	if id := incompleteActionID(err); id != "" {
		fmt.Fprintln(w, t.hintStyle().Render(fmt.Sprintf("action %s was recorded but not performed; see 'histograph actions list --incomplete'", id)))
	}
	return err
}

func incompleteActionID(err error) string {
	var serr *actions.StoreError
	if errors.As(err, &serr) {
		return serr.ActionID
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body.ActionID
	}
	return ""
}
