package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const statusFetchLabel = "Fetching agent state..."

var statusFetchLabelStyle = lipgloss.NewStyle().Faint(true)

type statusFetchDoneMsg struct {
	err error
}

type statusFetchSpinnerModel struct {
	spinner spinner.Model
	fetch   tea.Cmd
	err     error
	done    bool
}

func newStatusFetchSpinnerModel(fetch tea.Cmd) statusFetchSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return statusFetchSpinnerModel{
		spinner: s,
		fetch:   fetch,
	}
}

func (m statusFetchSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m statusFetchSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case statusFetchDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

// View clears itself once the fetch finishes so the rendered report starts on
// a clean line.
func (m statusFetchSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return m.spinner.View() + " " + statusFetchLabelStyle.Render(statusFetchLabel)
}

func runStatusFetchSpinner(ctx context.Context, output io.Writer, fetch func(context.Context) error) error {
	fetchCmd := func() tea.Msg {
		return statusFetchDoneMsg{err: fetch(ctx)}
	}

	p := tea.NewProgram(
		newStatusFetchSpinnerModel(fetchCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(statusFetchSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
