package transferprogress

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/caravelhq/caravel/cmd/caravel/tui"
)

// Model renders the transfer progress bar along with estimated transfer
// speed and remaining time, derived from the engine's percentage updates.
type Model struct {
	PayloadSize                int64
	TransferStartTime          *time.Time
	TransferSpeedEstimateBps   int64
	EstimatedRemainingDuration time.Duration

	percent     float64
	Width       int
	progressBar progress.Model
}

func New() Model {
	return Model{
		progressBar: tui.Progressbar,
	}
}

func (m *Model) StartTransfer() {
	now := time.Now()
	m.TransferStartTime = &now
}

func (Model) Init() tea.Cmd {
	return nil
}

func (m Model) View() string {
	view := m.progressBar.ViewAs(m.percent)
	if m.TransferSpeedEstimateBps > 0 && m.percent < 1.0 {
		view += tui.HelpStyle(fmt.Sprintf("  %s/s, %s left",
			tui.ByteCountSI(m.TransferSpeedEstimateBps),
			m.EstimatedRemainingDuration.Round(time.Second),
		))
	}
	return view
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.Width = msg.Width - 2*tui.PADDING - 4
		if m.Width > tui.MAX_WIDTH {
			m.Width = tui.MAX_WIDTH
		}
		m.progressBar.Width = m.Width
		return m, nil

	case tui.ProgressMsg:
		if m.TransferStartTime == nil {
			m.StartTransfer()
		}
		m.percent = math.Min(1.0, float64(msg)/100.0)

		secondsSpent := time.Since(*m.TransferStartTime).Seconds()
		if m.PayloadSize > 0 && secondsSpent > 0 && m.percent > 0 {
			bytesTransferred := int64(float64(m.PayloadSize) * m.percent)
			m.TransferSpeedEstimateBps = int64(float64(bytesTransferred) / secondsSpent)
			remainingSeconds := secondsSpent * (1 - m.percent) / m.percent
			remainingDuration, err := time.ParseDuration(fmt.Sprintf("%fs", remainingSeconds))
			if err != nil {
				return m, tui.ErrorCmd(errors.Wrap(err, "failed to parse remaining transfer time"))
			}
			m.EstimatedRemainingDuration = remainingDuration
		}
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progressBar.Update(msg)
		m.progressBar = progressModel.(progress.Model)
		return m, cmd

	default:
		return m, nil
	}
}
