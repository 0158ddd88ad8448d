package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/caravelhq/caravel"
	"github.com/caravelhq/caravel/cmd/caravel/tui"
	"github.com/caravelhq/caravel/cmd/caravel/tui/filetable"
	"github.com/caravelhq/caravel/cmd/caravel/tui/transferprogress"
	"github.com/caravelhq/caravel/internal/fsitem"
	"github.com/caravelhq/caravel/internal/item"
	"github.com/caravelhq/caravel/internal/transfer"
)

// ------------------------------------------------------ tui State -----------------------------------------------------

type tuiState int

// flows from the top down.
const (
	showGathering tuiState = iota
	showSendingProgress
	showFinished
)

// ------------------------------------------------------ Messages -----------------------------------------------------

type gatheredMsg struct {
	bundle *item.Bundle
}

type transferDoneMsg struct{}

// ------------------------------------------------------- Model -------------------------------------------------------

type model struct {
	state tuiState // defaults to 0 (showGathering)

	ctx    context.Context
	cancel context.CancelFunc
	msgs   chan interface{}

	addr  string
	paths []string
	opts  []caravel.Option

	itemCount int
	totalSize int64

	width            int
	spinner          spinner.Model
	transferProgress transferprogress.Model
	fileTable        filetable.Model
	help             help.Model
	keys             tui.KeyMap
}

// New creates a new sender program transferring paths to the receiver at
// addr.
func New(addr string, paths []string, opts ...caravel.Option) *tea.Program {
	ctx, cancel := context.WithCancel(context.Background())
	m := model{
		ctx:              ctx,
		cancel:           cancel,
		msgs:             make(chan interface{}, 512),
		addr:             addr,
		paths:            paths,
		opts:             opts,
		transferProgress: transferprogress.New(),
		fileTable:        filetable.New(),
		help:             help.New(),
		keys:             tui.Keys,
	}
	m.keys.FileListUp.SetEnabled(true)
	m.keys.FileListDown.SetEnabled(true)
	m.resetSpinner()
	return tea.NewProgram(m)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, gatherCmd(m.paths))
}

// ------------------------------------------------------- Update ------------------------------------------------------

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case gatheredMsg:
		m.itemCount = msg.bundle.Count()
		m.totalSize = msg.bundle.TotalSize()
		m.fileTable.SetItems(msg.bundle.Items())
		m.transferProgress.PayloadSize = m.totalSize
		message := fmt.Sprintf("Gathered %d objects (%s)", m.itemCount, tui.ByteCountSI(m.totalSize))
		if m.itemCount == 1 {
			message = fmt.Sprintf("Gathered %d object (%s)", m.itemCount, tui.ByteCountSI(m.totalSize))
		}
		return m, tui.TaskCmd(message, tea.Batch(
			transferCmd(m.ctx, m.addr, m.paths, m.msgs, m.opts...),
			tui.ListenCmd(m.msgs),
		))

	case tui.StateMsg:
		var message string
		if transfer.State(msg) == transfer.InProgress {
			message = fmt.Sprintf("Connected to receiver (%s)", m.addr)
		}
		return m, tui.TaskCmd(message, tui.ListenCmd(m.msgs))

	case tui.ProgressMsg:
		cmds := []tea.Cmd{tui.ListenCmd(m.msgs)}
		if m.state != showSendingProgress {
			m.state = showSendingProgress
			m.resetSpinner()
			m.transferProgress.StartTransfer()
			cmds = append(cmds, m.spinner.Tick)
		}
		transferProgressModel, transferProgressCmd := m.transferProgress.Update(msg)
		m.transferProgress = transferProgressModel.(transferprogress.Model)
		cmds = append(cmds, transferProgressCmd)
		return m, tea.Batch(cmds...)

	case transferDoneMsg:
		m.state = showFinished
		message := fmt.Sprintf("Sent %d object(s) (%s)", m.itemCount, tui.ByteCountSI(m.totalSize))
		if m.transferProgress.TransferStartTime != nil {
			message = fmt.Sprintf("%s in %s", message,
				time.Since(*m.transferProgress.TransferStartTime).Round(time.Millisecond))
		}
		m.fileTable = m.fileTable.Finalize().(filetable.Model)
		return m, tui.TaskCmd(message, tui.QuitCmd())

	case tui.ErrorMsg:
		m.cancel()
		return m, tui.ErrorCmd(msg.Err)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.cancel()
			return m, tea.Quit
		}
		fileTableModel, fileTableCmd := m.fileTable.Update(msg)
		m.fileTable = fileTableModel.(filetable.Model)
		return m, fileTableCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		transferProgressModel, transferProgressCmd := m.transferProgress.Update(msg)
		m.transferProgress = transferProgressModel.(transferprogress.Model)
		fileTableModel, fileTableCmd := m.fileTable.Update(msg)
		m.fileTable = fileTableModel.(filetable.Model)
		return m, tea.Batch(transferProgressCmd, fileTableCmd)

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

// -------------------------------------------------------- View -------------------------------------------------------

func (m model) View() string {
	readiness := fmt.Sprintf("%s Gathering objects", m.spinner.View())
	switch m.state {
	case showSendingProgress:
		readiness = fmt.Sprintf("%s Sending to %s", m.spinner.View(), m.addr)
	case showFinished:
		readiness = fmt.Sprintf("Sent %d object(s) (%s)", m.itemCount, tui.ByteCountSI(m.totalSize))
	}

	statusText := readiness
	if m.itemCount > 0 && m.state != showFinished {
		statusText = fmt.Sprintf("%s, %d object(s) (%s)", readiness, m.itemCount, tui.ByteCountSI(m.totalSize))
	}

	switch m.state {
	case showGathering:
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(statusText) + "\n\n" +
			m.fileTable.View() +
			tui.PadText + m.help.View(m.keys) + "\n\n"

	case showSendingProgress:
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(statusText) + "\n\n" +
			tui.PadText + m.transferProgress.View() + "\n\n" +
			m.fileTable.View() +
			tui.PadText + m.help.View(m.keys) + "\n\n"

	case showFinished:
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(statusText) + "\n\n" +
			tui.PadText + m.transferProgress.View() + "\n\n" +
			m.fileTable.View()

	default:
		return ""
	}
}

// ------------------------------------------------------ Commands -----------------------------------------------------

// gatherCmd builds the bundle up front so the UI can list the items and
// their total size before the transfer starts.
func gatherCmd(paths []string) tea.Cmd {
	return func() tea.Msg {
		bundle, err := fsitem.Gather(paths)
		if err != nil {
			return tui.ErrorMsg{Err: err}
		}
		return gatheredMsg{bundle: bundle}
	}
}

// transferCmd runs the whole send sequence, reporting intermediate progress
// through the msgs channel.
func transferCmd(ctx context.Context, addr string, paths []string, msgs chan interface{}, opts ...caravel.Option) tea.Cmd {
	return func() tea.Msg {
		opts = append(opts, caravel.WithObserver(tui.Forwarder(msgs)))
		if err := caravel.Send(ctx, addr, paths, opts...); err != nil {
			return tui.ErrorMsg{Err: err}
		}
		return transferDoneMsg{}
	}
}

// -------------------------------------------------- Helper Functions -------------------------------------------------

func (m *model) resetSpinner() {
	m.spinner = spinner.New()
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(tui.ELEMENT_COLOR))
	if m.state == showSendingProgress {
		m.spinner.Spinner = tui.TransferSpinner
	} else {
		m.spinner.Spinner = tui.GatheringSpinner
	}
}
