package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// fetchTarget names the calls a refresh is waiting on.
type fetchTarget struct {
	profile domain.ProfileID
	calls   []string
	period  domain.PeriodKey
	folder  string
}

func (t fetchTarget) String() string {
	var b strings.Builder
	b.WriteString("Fetching ")
	b.WriteString(strings.Join(t.calls, ", "))
	if !t.period.IsZero() {
		b.WriteString(" for week ")
		b.WriteString(t.period.String())
	}
	if t.folder != "" {
		fmt.Fprintf(&b, " in %s", t.folder)
	}
	if t.profile != "" {
		fmt.Fprintf(&b, " (%s)", t.profile)
	}
	b.WriteString("...")
	return b.String()
}

type fetchDoneMsg struct {
	err error
}

type fetchSpinnerModel struct {
	spinner spinner.Model
	target  fetchTarget
	fetch   tea.Cmd
	err     error
	done    bool
}

func newFetchSpinnerModel(target fetchTarget, fetch tea.Cmd) fetchSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return fetchSpinnerModel{
		spinner: s,
		target:  target,
		fetch:   fetch,
	}
}

func (m fetchSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m fetchSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case fetchDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m fetchSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.target)
}

// runFetchSpinner shows target on output until fetch returns.
func runFetchSpinner(ctx context.Context, output io.Writer, target fetchTarget, fetch func(context.Context) error) error {
	fetchCmd := func() tea.Msg {
		return fetchDoneMsg{err: fetch(ctx)}
	}

	p := tea.NewProgram(
		newFetchSpinnerModel(target, fetchCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(fetchSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
