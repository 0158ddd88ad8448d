package receiver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/caravelhq/caravel"
	"github.com/caravelhq/caravel/cmd/caravel/tui"
	"github.com/caravelhq/caravel/cmd/caravel/tui/transferprogress"
	"github.com/caravelhq/caravel/internal/transfer"
)

// ------------------------------------------------------ tui State -----------------------------------------------------

type tuiState int

// flows from the top down.
const (
	showListening tuiState = iota
	showReceivingProgress
	showFinished
)

// ------------------------------------------------------ Messages -----------------------------------------------------

type listeningMsg struct {
	listener *caravel.Listener
}

type receiveDoneMsg struct{}

// ------------------------------------------------------- Model -------------------------------------------------------

type model struct {
	state tuiState // defaults to 0 (showListening)

	ctx    context.Context
	cancel context.CancelFunc
	msgs   chan interface{}

	port int
	dest string
	opts []caravel.Option

	address    string
	deviceName string

	width            int
	spinner          spinner.Model
	transferProgress transferprogress.Model
	help             help.Model
	keys             tui.KeyMap
	copyMessageTimer timer.Model
}

// New creates a new receiver program listening on port and writing received
// objects under dest.
func New(port int, dest string, opts ...caravel.Option) *tea.Program {
	ctx, cancel := context.WithCancel(context.Background())
	m := model{
		ctx:              ctx,
		cancel:           cancel,
		msgs:             make(chan interface{}, 512),
		port:             port,
		dest:             dest,
		opts:             opts,
		transferProgress: transferprogress.New(),
		help:             help.New(),
		keys:             tui.Keys,
		copyMessageTimer: timer.NewWithInterval(tui.TEMP_UI_MESSAGE_DURATION, 100*time.Millisecond),
	}
	m.resetSpinner()
	return tea.NewProgram(m)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listenCmd(m.port, m.msgs, m.opts))
}

// ------------------------------------------------------- Update ------------------------------------------------------

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case listeningMsg:
		m.address = displayAddress(msg.listener.Addr())
		m.keys.CopyAddress.SetEnabled(true)
		return m, tea.Batch(
			receiveCmd(m.ctx, msg.listener, m.dest),
			tui.ListenCmd(m.msgs),
		)

	case tui.DeviceNameMsg:
		m.deviceName = string(msg)
		return m, tui.TaskCmd(fmt.Sprintf("Receiving from %s", m.deviceName), tui.ListenCmd(m.msgs))

	case tui.StateMsg:
		var message string
		if transfer.State(msg) == transfer.InProgress {
			message = "Sender connected"
		}
		return m, tui.TaskCmd(message, tui.ListenCmd(m.msgs))

	case tui.ProgressMsg:
		cmds := []tea.Cmd{tui.ListenCmd(m.msgs)}
		if m.state != showReceivingProgress {
			m.state = showReceivingProgress
			m.resetSpinner()
			m.transferProgress.StartTransfer()
			cmds = append(cmds, m.spinner.Tick)
		}
		transferProgressModel, transferProgressCmd := m.transferProgress.Update(msg)
		m.transferProgress = transferProgressModel.(transferprogress.Model)
		cmds = append(cmds, transferProgressCmd)
		return m, tea.Batch(cmds...)

	case receiveDoneMsg:
		m.state = showFinished
		message := "Transfer completed"
		if m.transferProgress.TransferStartTime != nil {
			message = fmt.Sprintf("%s in %s", message,
				time.Since(*m.transferProgress.TransferStartTime).Round(time.Millisecond))
		}
		return m, tui.TaskCmd(message, tui.QuitCmd())

	case tui.ErrorMsg:
		m.cancel()
		return m, tui.ErrorCmd(msg.Err)

	case timer.TickMsg:
		var cmd tea.Cmd
		m.copyMessageTimer, cmd = m.copyMessageTimer.Update(msg)
		if m.copyMessageTimer.Running() {
			m.keys.CopyAddress.SetHelp("c", tui.CopyKeyActiveHelpText)
		}
		return m, cmd

	case timer.TimeoutMsg:
		var cmd tea.Cmd
		m.copyMessageTimer, cmd = m.copyMessageTimer.Update(msg)
		m.keys.CopyAddress.SetHelp("c", tui.CopyKeyHelpText)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.CopyAddress) && m.address != "":
			if err := clipboard.WriteAll(m.address); err == nil {
				m.copyMessageTimer.Timeout = tui.TEMP_UI_MESSAGE_DURATION
				return m, m.copyMessageTimer.Init()
			}
			return m, nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		transferProgressModel, transferProgressCmd := m.transferProgress.Update(msg)
		m.transferProgress = transferProgressModel.(transferprogress.Model)
		return m, transferProgressCmd

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

// -------------------------------------------------------- View -------------------------------------------------------

func (m model) View() string {
	switch m.state {
	case showListening:
		status := fmt.Sprintf("%s Waiting for sender", m.spinner.View())
		if m.address != "" {
			status = fmt.Sprintf("%s Listening on %s", m.spinner.View(), tui.BoldText(m.address))
		}
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(status) + "\n\n" +
			tui.PadText + m.help.View(m.keys) + "\n\n"

	case showReceivingProgress:
		status := fmt.Sprintf("%s Receiving", m.spinner.View())
		if m.deviceName != "" {
			status = fmt.Sprintf("%s Receiving from %s", m.spinner.View(), tui.BoldText(m.deviceName))
		}
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(status) + "\n\n" +
			tui.PadText + m.transferProgress.View() + "\n\n" +
			tui.PadText + m.help.View(m.keys) + "\n\n"

	case showFinished:
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle("Transfer completed") + "\n\n" +
			tui.PadText + m.transferProgress.View() + "\n\n"

	default:
		return ""
	}
}

// ------------------------------------------------------ Commands -----------------------------------------------------

// listenCmd binds the port before the sender is told where to connect, so
// the displayed address is always live.
func listenCmd(port int, msgs chan interface{}, opts []caravel.Option) tea.Cmd {
	return func() tea.Msg {
		opts = append(opts, caravel.WithObserver(tui.Forwarder(msgs)))
		l, err := caravel.Listen(fmt.Sprintf(":%d", port), opts...)
		if err != nil {
			return tui.ErrorMsg{Err: err}
		}
		return listeningMsg{listener: l}
	}
}

// receiveCmd accepts one transfer, reporting intermediate progress through
// the msgs channel consumed by ListenCmd.
func receiveCmd(ctx context.Context, l *caravel.Listener, dest string) tea.Cmd {
	return func() tea.Msg {
		defer l.Close()
		if err := l.Receive(ctx, dest); err != nil {
			return tui.ErrorMsg{Err: err}
		}
		return receiveDoneMsg{}
	}
}

// -------------------------------------------------- Helper Functions -------------------------------------------------

func (m *model) resetSpinner() {
	m.spinner = spinner.New()
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(tui.ELEMENT_COLOR))
	if m.state == showReceivingProgress {
		m.spinner.Spinner = tui.ReceivingSpinner
	} else {
		m.spinner.Spinner = tui.WaitingSpinner
	}
}

// displayAddress turns the wildcard listen address into something a sender
// can actually dial.
func displayAddress(addr net.Addr) string {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	if tcpAddr.IP != nil && !tcpAddr.IP.IsUnspecified() {
		return tcpAddr.String()
	}
	ifaceAddrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range ifaceAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			if v4 := ipNet.IP.To4(); v4 != nil {
				return fmt.Sprintf("%s:%d", v4, tcpAddr.Port)
			}
		}
	}
	return fmt.Sprintf("localhost:%d", tcpAddr.Port)
}
