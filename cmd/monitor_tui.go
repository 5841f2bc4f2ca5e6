// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/thermoquad/cbusnode/button"
	"github.com/thermoquad/cbusnode/clock"
	"github.com/thermoquad/cbusnode/configstore"
	"github.com/thermoquad/cbusnode/dispatcher"
	"github.com/thermoquad/cbusnode/frame"
	"github.com/thermoquad/cbusnode/indicator"
	"github.com/thermoquad/cbusnode/modemachine"
	"github.com/thermoquad/cbusnode/ringbuffer"
)

func init() {
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live status dashboard for a running CBUS node",
	Long: `monitor runs the same dispatch core as "run" but renders a live
terminal dashboard instead of line-by-line logging: current mode, node
number, local id, event-table occupancy, and a scrolling frame log.`,
	RunE: runMonitor,
}

// logEntry is one line in the monitor's scrolling frame log.
type logEntry struct {
	timestamp time.Time
	text      string
	tx        bool
}

const maxLogEntries = 12

// tickMsg drives the dashboard's periodic Process call, separate from the
// frame-arrival messages pushed in by the node's observers.
type tickMsg time.Time

// frameMsg carries one observed frame (RX or TX) into the Bubble Tea
// update loop from the dispatcher's filter/transmit-observer callbacks.
type frameMsg struct {
	entry logEntry
}

// monitorModel is the Bubble Tea model for the live dashboard, grounded on
// the teacher's cmd/tui.go model shape (stats + scrolling log + tick).
type monitorModel struct {
	disp  *dispatcher.Dispatcher
	store configstore.ConfigStore
	desc  string

	log      []logEntry
	msgCh    chan frameMsg
	quitting bool
	width    int

	// spin animates next to "Local ID" while enumeration hasn't yet claimed
	// one (local id 0), grounded on the teacher's bubbles/list-based
	// control_tui.go's use of the wider bubbles component set.
	spin spinner.Model
}

func runMonitor(cmd *cobra.Command, args []string) error {
	drv, desc, err := openDriver()
	if err != nil {
		return err
	}
	defer drv.Close()

	store := configstore.NewMemStore()
	store.SetNodeNumber(nodeNumber)
	store.SetLocalID(busID)

	disp := dispatcher.NewWithUI(
		clock.System{}, store, drv,
		defaultParams(), dispatcher.NewModuleName(moduleLabel),
		indicator.Noop{}, button.Noop{},
	)
	disp.SetLoopback(ringbuffer.New(loopbackCapacity))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	m := &monitorModel{
		disp:  disp,
		store: store,
		desc:  desc,
		msgCh: make(chan frameMsg, 64),
		spin:  sp,
	}

	disp.SetTransmitObserver(func(f frame.Frame) {
		m.pushLog(logEntry{timestamp: time.Now(), text: formatFrame(f), tx: true})
	})
	disp.SetFrameFilter(nil, func(f frame.Frame) {
		m.pushLog(logEntry{timestamp: time.Now(), text: formatFrame(f), tx: false})
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// pushLog is called from the dispatcher's synchronous observer callbacks, so
// it only enqueues; the Bubble Tea event loop drains msgCh on its own
// goroutine, keeping Process's single-threaded contract intact (spec §5).
func (m *monitorModel) pushLog(e logEntry) {
	select {
	case m.msgCh <- frameMsg{entry: e}:
	default:
	}
}

func waitForFrame(ch chan frameMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Duration(tickMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForFrame(m.msgCh), m.spin.Tick)
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.disp.Process(maxFrames)
		return m, tickCmd()

	case frameMsg:
		m.log = append(m.log, msg.entry)
		if len(m.log) > maxLogEntries {
			m.log = m.log[len(m.log)-maxLogEntries:]
		}
		return m, waitForFrame(m.msgCh)

	case spinner.TickMsg:
		if m.store.LocalID() == 0 {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	return m, nil
}

func modeLabel(mode modemachine.Mode) string {
	switch mode {
	case modemachine.Lean:
		return "LEAN"
	case modemachine.Transitioning:
		return "TRANSITIONING"
	case modemachine.Flexible:
		return "FLEXIBLE"
	default:
		return "?"
	}
}

func (m *monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	txStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	rxStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("CBUSNODE - LIVE MONITOR"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s  |  press 'q' to quit\n\n", m.desc))

	localID := valueStyle.Render(fmt.Sprintf("%d", m.store.LocalID()))
	if m.store.LocalID() == 0 {
		localID = fmt.Sprintf("%s %s", m.spin.View(), valueStyle.Render("enumerating"))
	}

	status := fmt.Sprintf("%s %s   %s %s   %s %s   %s %d",
		labelStyle.Render("Mode:"), valueStyle.Render(modeLabel(m.disp.Mode())),
		labelStyle.Render("Node#:"), valueStyle.Render(fmt.Sprintf("%d", m.store.NodeNumber())),
		labelStyle.Render("Local ID:"), localID,
		labelStyle.Render("Events learned:"), m.store.NumEvents(),
	)
	s.WriteString(boxStyle.Render(status))
	s.WriteString("\n\n")

	var logBody strings.Builder
	if len(m.log) == 0 {
		logBody.WriteString("(no frames yet)")
	}
	for _, e := range m.log {
		style := rxStyle
		dir := "RX"
		if e.tx {
			style = txStyle
			dir = "TX"
		}
		logBody.WriteString(fmt.Sprintf("%s %s %s\n", e.timestamp.Format("15:04:05.000"), style.Render(dir), e.text))
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(logBody.String(), "\n")))
	s.WriteString("\n")

	return s.String()
}
