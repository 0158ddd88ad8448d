// Package tui holds the styles, key bindings, messages and commands shared
// by the sender and receiver terminal UIs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/exp/slices"

	"github.com/caravelhq/caravel/internal/transfer"
)

const (
	MARGIN    = 2
	PADDING   = 2
	MAX_WIDTH = 80

	PRIMARY_COLOR           = "#B8BABA"
	SECONDARY_COLOR         = "#626262"
	DARK_COLOR              = "#232323"
	ELEMENT_COLOR           = "#EE9F40"
	SECONDARY_ELEMENT_COLOR = "#EE9F70"
	ERROR_COLOR             = "#CC0000"
	WARNING_COLOR           = "#FF7900"
	CHECK_COLOR             = "#34B233"

	TEMP_UI_MESSAGE_DURATION = 2 * time.Second
	SHUTDOWN_PERIOD          = 500 * time.Millisecond

	CopyKeyHelpText       = "copy address"
	CopyKeyActiveHelpText = "copied!"
)

var QuitKeys = []string{"ctrl+c", "q", "esc"}
var PadText = strings.Repeat(" ", PADDING)

var BaseStyle = lipgloss.NewStyle()
var InfoStyle = BaseStyle.Copy().Foreground(lipgloss.Color(PRIMARY_COLOR)).Render
var HelpStyle = BaseStyle.Copy().Foreground(lipgloss.Color(SECONDARY_COLOR)).Render
var ItalicText = BaseStyle.Copy().Italic(true).Render
var BoldText = BaseStyle.Copy().Bold(true).Render
var ErrorText = BaseStyle.Copy().Foreground(lipgloss.Color(ERROR_COLOR)).Render
var WarningText = BaseStyle.Copy().Foreground(lipgloss.Color(WARNING_COLOR)).Render
var SuccessText = BaseStyle.Copy().Foreground(lipgloss.Color(CHECK_COLOR)).Render

var Progressbar = progress.New(progress.WithGradient(SECONDARY_ELEMENT_COLOR, ELEMENT_COLOR))

var WaitingSpinner = spinner.Spinner{
	Frames: []string{"⠋ ", "⠙ ", "⠹ ", "⠸ ", "⠼ ", "⠴ ", "⠦ ", "⠧ ", "⠇ ", "⠏ "},
	FPS:    time.Second / 12,
}

var GatheringSpinner = spinner.Spinner{
	Frames: []string{"┉┉┉", "┅┅┅", "┄┄┄", "┉ ┉", "┅ ┅", "┄ ┄", " ┉ ", " ┉ ", " ┅ ", " ┅ ", " ┄ "},
	FPS:    time.Second / 3,
}

var TransferSpinner = spinner.Spinner{
	Frames: []string{"»  ", "»» ", "»»»", "   "},
	FPS:    time.Millisecond * 400,
}

var ReceivingSpinner = spinner.Spinner{
	Frames: []string{"   ", "  «", " ««", "«««"},
	FPS:    time.Second / 2,
}

// ------------------------------------------------------- Key map -------------------------------------------------------

type KeyMap struct {
	Quit         key.Binding
	CopyAddress  key.Binding
	FileListUp   key.Binding
	FileListDown key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.CopyAddress, k.FileListUp, k.FileListDown, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var Keys = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys(QuitKeys...),
		key.WithHelp("q", "quit"),
	),
	CopyAddress: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", CopyKeyHelpText),
		key.WithDisabled(),
	),
	FileListUp: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll files up"),
		key.WithDisabled(),
	),
	FileListDown: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll files down"),
		key.WithDisabled(),
	),
}

// IsQuitKey reports whether the pressed key aborts the program.
func IsQuitKey(msg tea.KeyMsg) bool {
	return slices.Contains(QuitKeys, msg.String())
}

// ------------------------------------------------------- Messages ------------------------------------------------------

// ProgressMsg is the integer percentage of the transfer completed so far.
type ProgressMsg int

// StateMsg reports an engine lifecycle change.
type StateMsg transfer.State

// DeviceNameMsg carries the peer name learned from the transfer header.
type DeviceNameMsg string

// ErrorMsg carries a fatal error to be rendered before quitting.
type ErrorMsg struct {
	Err error
}

// ------------------------------------------------------- Commands ------------------------------------------------------

// TaskCmd logs a permanent line above the UI, then runs cmd.
func TaskCmd(message string, cmd tea.Cmd) tea.Cmd {
	if message == "" {
		return cmd
	}
	line := fmt.Sprintf("%s %s", SuccessText("✔"), message)
	return tea.Sequence(tea.Println(PadText+line), cmd)
}

// ErrorCmd logs the error above the UI and quits after a short pause so the
// message is seen.
func ErrorCmd(err error) tea.Cmd {
	line := fmt.Sprintf("%s %s", ErrorText("✘"), ErrorText(err.Error()))
	return tea.Sequence(tea.Println(PadText+line), QuitCmd())
}

// QuitCmd quits after a graceful shutdown pause.
func QuitCmd() tea.Cmd {
	return tea.Tick(SHUTDOWN_PERIOD, func(time.Time) tea.Msg {
		return tea.QuitMsg{}
	})
}

// ListenCmd waits for one value from the transfer's observer channel and
// converts it to a UI message. Re-issue it after every received message.
func ListenCmd(msgs chan interface{}) tea.Cmd {
	return func() tea.Msg {
		switch v := (<-msgs).(type) {
		case transfer.State:
			return StateMsg(v)
		case int:
			return ProgressMsg(v)
		case string:
			return DeviceNameMsg(v)
		case error:
			return ErrorMsg{Err: v}
		default:
			return nil
		}
	}
}

// Forwarder adapts the transfer engine's observer callbacks onto a channel
// consumed by ListenCmd.
func Forwarder(msgs chan interface{}) transfer.Observer {
	return transfer.Observer{
		StateChanged:      func(s transfer.State) { msgs <- s },
		ProgressChanged:   func(p int) { msgs <- p },
		DeviceNameChanged: func(name string) { msgs <- name },
	}
}

// -------------------------------------------------------- Helpers ------------------------------------------------------

// LogSeparator visually separates the scrolling task log from the UI.
func LogSeparator(width int) string {
	width = min(width, MAX_WIDTH)
	if width <= 0 {
		return "\n"
	}
	return HelpStyle(strings.Repeat("─", width)) + "\n\n"
}

// ByteCountSI formats a byte count with SI units.
func ByteCountSI(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "kMGTPE"[exp])
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
