package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"dync/controller"
	"dync/eventbus"
)

func newStatusCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the engine's current state",
		Long: `Prints the host-facing snapshot spec §6.2 describes: controller
status, pending change count, per-table last-pulled cursors, open
conflicts, and the last apiError. --watch instead runs a live view that
updates as mutation events arrive on the engine's eventbus.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildController()
			if err != nil {
				return err
			}
			if !watch {
				c.Enable(true)
				defer c.Shutdown(10 * time.Second)
				snap, err := c.State()
				if err != nil {
					return err
				}
				printSnapshot(snap)
				return nil
			}
			return runStatusWatch(c)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "run a live-updating status view")
	return cmd
}

func printSnapshot(snap controller.Snapshot) {
	fmt.Printf("status: %s\n", snap.Status)
	fmt.Printf("pending changes: %d\n", snap.PendingChanges)
	if snap.ApiError != nil {
		fmt.Printf("last error: %v (network=%v)\n", snap.ApiError, snap.ApiError.IsNetworkError)
	}
	if len(snap.LastPulled) > 0 {
		fmt.Println("last pulled:")
		for table, ts := range snap.LastPulled {
			fmt.Printf("  %s: %d\n", table, ts)
		}
	}
	if len(snap.Conflicts) > 0 {
		fmt.Printf("conflicts (%d):\n", len(snap.Conflicts))
		for _, cf := range snap.Conflicts {
			fmt.Printf("  %s/%s: %v\n", cf.Table, cf.LocalID, cf.Fields)
		}
	}
}

// statusModel is the bubbletea program driving --watch, grounded on
// internal/views/builder/model.go's Model/Init/Update/View shape and the
// teacher's bubbletea dependency generally. tickMsg polls State on an
// interval; mutationMsg arrives whenever the engine's eventbus fires, so
// the view reflects mutations as they commit rather than only on the
// poll cadence.
type statusModel struct {
	c        *controller.Controller
	snap     controller.Snapshot
	err      error
	interval time.Duration
	spin     spinner.Model
}

type tickMsg time.Time
type mutationMsg eventbus.MutationEvent

func runStatusWatch(c *controller.Controller) error {
	c.Enable(true)
	defer c.Shutdown(10 * time.Second)

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = statusStyle

	m := statusModel{c: c, interval: time.Second, spin: spin}
	p := tea.NewProgram(m)

	unsubscribe := c.Subscribe("", func(ev eventbus.MutationEvent) {
		p.Send(mutationMsg(ev))
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}

func (m statusModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd(m.interval), m.spin.Tick)
}

func (m statusModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.c.State()
		if err != nil {
			return statusErrMsg{err}
		}
		return statusSnapMsg{snap}
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type statusSnapMsg struct{ snap controller.Snapshot }
type statusErrMsg struct{ err error }

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd(m.interval))
	case mutationMsg:
		return m, m.refreshCmd()
	case statusSnapMsg:
		m.snap = msg.snap
		m.err = nil
	case statusErrMsg:
		m.err = msg.err
	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m statusModel) View() string {
	if m.err != nil {
		return errStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n"
	}
	label := fmt.Sprintf("status: %s", m.snap.Status)
	if m.snap.Status == controller.Syncing || m.snap.Status == controller.FirstLoading {
		label = m.spin.View() + " " + label
	}
	out := statusStyle.Render(label) + "\n"
	out += fmt.Sprintf("pending changes: %d\n", m.snap.PendingChanges)
	if m.snap.ApiError != nil {
		out += errStyle.Render(fmt.Sprintf("last error: %v", m.snap.ApiError)) + "\n"
	}
	if len(m.snap.Conflicts) > 0 {
		out += fmt.Sprintf("conflicts: %d\n", len(m.snap.Conflicts))
	}
	out += dimStyle.Render("q to quit") + "\n"
	return out
}
