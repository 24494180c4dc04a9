package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/histograph-go/internal/actions"
)

// batchMsg reports one committed drain batch.
type batchMsg actions.BatchProgress

// drainDoneMsg carries the finished action.
type drainDoneMsg struct {
	out *actions.Outcome
	err error
}

// drainModel is the bubbletea model for a bulk unlink.
type drainModel struct {
	entity   string
	total    int // appearances counted before the drain; 0 when unknown
	last     actions.BatchProgress
	progress progress.Model
	theme    Theme
	cancel   context.CancelFunc

	stopping bool
	done     bool
	out      *actions.Outcome
	err      error
}

// newDrainModel creates a new drain model.
func newDrainModel(entity string, total int, cancel context.CancelFunc) drainModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return drainModel{
		entity:   entity,
		total:    total,
		progress: prog,
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m drainModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m drainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Committed batches stay committed; wait for the engine to
			// report the interrupted action.
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
			return m, nil
		}

	case batchMsg:
		m.last = actions.BatchProgress(msg)
		if m.last.Total > m.total {
			m.total = m.last.Total
		}
		return m, nil

	case drainDoneMsg:
		m.done = true
		m.out, m.err = msg.out, msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m drainModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m drainModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.last.Total) / float64(m.total)
}

// renderContent builds the display string.
func (m drainModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[batch %d]", m.last.Batch))
	counts := fmt.Sprintf("%d/%d appearances removed", m.last.Total, m.total)
	if m.total == 0 {
		counts = fmt.Sprintf("%d appearances removed", m.last.Total)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop after the current batch")
	if m.stopping {
		hint = m.theme.hintStyle().Render("Stopping after the current batch...")
	}

	return fmt.Sprintf("Unlinking entity %s\n%s %s %s\n%s\n", m.entity, status, m.progress.ViewAs(m.percent()), counts, hint)
}

// finalView renders the completion line; the caller prints the results.
func (m drainModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Stopped after %d appearances", m.last.Total)) + "\n"
	}
	return m.theme.completedStyle().Render(fmt.Sprintf("✓ Drained in %d batches", m.last.Batch)) + "\n"
}

// runDrainProgress runs the interactive progress UI while perform drains the
// entity. perform must report every batch through the given observer.
func runDrainProgress(ctx context.Context, entity string, total int, perform func(context.Context, actions.BatchObserver) (*actions.Outcome, error)) (*actions.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newDrainModel(entity, total, cancel)
	p := tea.NewProgram(model)

	go func() {
		out, err := perform(ctx, func(bp actions.BatchProgress) {
			p.Send(batchMsg(bp))
		})
		p.Send(drainDoneMsg{out: out, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(drainModel)
	if !ok {
		return nil, fmt.Errorf("progress UI returned %T", finalModel)
	}
	return m.out, m.err
}
