// Package tui is a terminal front end for the recording engine.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"livescribe/internal/domain"
	"livescribe/internal/usecase"
)

const (
	commandTimeout = 10 * time.Second
	historyLimit   = 5
	noticeDuration = 4 * time.Second
	meterWidth     = 3
)

// Engine is the part of the orchestrator the TUI drives.
type Engine interface {
	Toggle(ctx context.Context) (domain.FeedbackEvent, error)
	Save(ctx context.Context) (domain.Transcript, error)
	SetLanguage(code string) error
	Snapshot() domain.Snapshot
}

// Settings reads and writes the haptics preference.
type Settings interface {
	HapticsEnabled(ctx context.Context) (bool, error)
	SetHapticsEnabled(ctx context.Context, enabled bool) error
}

type History interface {
	List(ctx context.Context, userID string, limit int) ([]domain.Transcript, error)
}

// Model is the root bubbletea model.
type Model struct {
	engine   Engine
	settings Settings
	history  History
	userID   string

	snapshot domain.Snapshot
	haptics  bool
	frame    domain.AudioFrame
	recent   []domain.Transcript

	notice      string
	errorText   string
	errorSticky bool

	width  int
	height int
}

func New(engine Engine, settings Settings, history History, userID string) Model {
	return Model{
		engine:   engine,
		settings: settings,
		history:  history,
		userID:   userID,
		snapshot: engine.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(snapshotCmd(m.engine), loadHapticsCmd(m.settings), historyCmd(m.history, m.userID))
}

func snapshotCmd(engine Engine) tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: engine.Snapshot()}
	}
}

func toggleCmd(engine Engine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if _, err := engine.Toggle(ctx); err != nil {
			return CommandErrorMsg{Command: "toggle", Err: err}
		}
		return SnapshotMsg{Snapshot: engine.Snapshot()}
	}
}

func saveCmd(engine Engine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		record, err := engine.Save(ctx)
		if err != nil {
			return CommandErrorMsg{Command: "save", Err: err}
		}
		return SavedMsg{Transcript: record}
	}
}

func languageCmd(engine Engine, code string) tea.Cmd {
	return func() tea.Msg {
		if err := engine.SetLanguage(code); err != nil {
			return CommandErrorMsg{Command: "language", Err: err}
		}
		return SnapshotMsg{Snapshot: engine.Snapshot()}
	}
}

func loadHapticsCmd(settings Settings) tea.Cmd {
	if settings == nil {
		return nil
	}
	return func() tea.Msg {
		enabled, err := settings.HapticsEnabled(context.Background())
		return HapticsMsg{Enabled: enabled, Err: err}
	}
}

func setHapticsCmd(settings Settings, enabled bool) tea.Cmd {
	return func() tea.Msg {
		if err := settings.SetHapticsEnabled(context.Background(), enabled); err != nil {
			return CommandErrorMsg{Command: "haptics", Err: err}
		}
		return HapticsMsg{Enabled: enabled}
	}
}

func historyCmd(history History, userID string) tea.Cmd {
	if history == nil {
		return nil
	}
	return func() tea.Msg {
		items, err := history.List(context.Background(), userID, historyLimit)
		return HistoryMsg{Items: items, Err: err}
	}
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StateMsg:
		m.snapshot.State = msg.State
		if msg.State == domain.RecordingStateRecording {
			m.errorText = ""
		} else {
			m.frame = domain.AudioFrame{}
		}
		return m, snapshotCmd(m.engine)

	case InterimMsg:
		m.snapshot.InterimText = msg.Text
		return m, nil

	case FinalMsg:
		m.snapshot.FinalText = msg.Text
		return m, nil

	case FrameMsg:
		m.frame = msg.Frame
		return m, nil

	case FeedbackMsg:
		return m.handleFeedback(msg.Event)

	case ErrorMsg:
		m.errorText = domain.UserMessage(msg.Code)
		if msg.Detail != "" {
			m.errorText += ": " + msg.Detail
		}
		m.errorSticky = true
		return m, nil

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		return m, nil

	case HapticsMsg:
		if msg.Err != nil {
			m.haptics = true
			return m, nil
		}
		m.haptics = msg.Enabled
		return m, nil

	case HistoryMsg:
		if msg.Err == nil {
			m.recent = msg.Items
		}
		return m, nil

	case SavedMsg:
		return m, tea.Batch(snapshotCmd(m.engine), historyCmd(m.history, m.userID))

	case CommandErrorMsg:
		if errors.Is(msg.Err, usecase.ErrToggleInFlight) || errors.Is(msg.Err, usecase.ErrSaveInFlight) {
			return m, nil
		}
		m.errorText = fmt.Sprintf("%s: %v", msg.Command, msg.Err)
		m.errorSticky = false
		return m, tea.Batch(snapshotCmd(m.engine), clearNoticeCmd())

	case ClearNoticeMsg:
		m.notice = ""
		if !m.errorSticky {
			m.errorText = ""
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleFeedback(event domain.FeedbackEvent) (tea.Model, tea.Cmd) {
	switch event {
	case domain.FeedbackStartOK:
		m.notice = "Listening"
	case domain.FeedbackStopOK:
		m.notice = "Stopped"
	case domain.FeedbackSaveOK:
		m.notice = "Transcript saved"
	case domain.FeedbackStartDenied:
		m.notice = "Microphone or speech permission denied"
	default:
		return m, nil
	}
	return m, clearNoticeCmd()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		return m, tea.Quit

	case KeyToggle:
		return m, toggleCmd(m.engine)

	case KeySave:
		if !m.snapshot.CanSave {
			return m, nil
		}
		m.snapshot.CanSave = false
		m.snapshot.Saving = true
		return m, saveCmd(m.engine)

	case KeyLanguage:
		if m.snapshot.State != domain.RecordingStateIdle {
			return m, nil
		}
		return m, languageCmd(m.engine, domain.NextLanguage(m.snapshot.Language).Code)

	case KeyHaptics:
		if m.settings == nil {
			return m, nil
		}
		m.haptics = !m.haptics
		return m, setHapticsCmd(m.settings, m.haptics)

	case KeyDismiss:
		m.errorText = ""
		m.errorSticky = false
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var sections []string
	sections = append(sections, m.renderHeader(), m.renderStatus())

	divider := dividerStyle.Render(strings.Repeat("─", max(m.width, 40)))
	sections = append(sections, divider, m.renderTranscript(), divider)

	if len(m.recent) > 0 {
		sections = append(sections, m.renderHistory())
	}
	if m.errorText != "" {
		sections = append(sections, errorStyle.Render(m.errorText))
	} else if m.notice != "" {
		sections = append(sections, okStyle.Render(m.notice))
	}
	sections = append(sections, dimStyle.Render("space record/stop · s save · l language · h haptics · esc dismiss · q quit"))
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	lang := m.snapshot.Language
	if known, ok := domain.LookupLanguage(lang); ok {
		lang = known.Name
	}
	haptics := "off"
	if m.haptics {
		haptics = "on"
	}
	return titleStyle.Render("LIVESCRIBE") + dimStyle.Render(fmt.Sprintf("  %s · haptics %s", lang, haptics))
}

func (m Model) renderStatus() string {
	var status string
	switch {
	case m.snapshot.State == domain.RecordingStateRecording:
		status = recordingStyle.Render("● REC")
	case m.snapshot.Saving:
		status = idleStyle.Render("○ SAVING")
	default:
		status = idleStyle.Render("○ IDLE")
	}
	if len(m.frame.Spectrum) > 0 {
		status += "  " + renderSpectrum(m.frame.Spectrum)
	}
	return status
}

// renderSpectrum draws one vertical block glyph per bar.
func renderSpectrum(bars []float64) string {
	const glyphs = "▁▂▃▄▅▆▇█"
	runes := []rune(glyphs)
	var b strings.Builder
	for _, v := range bars {
		v = min(max(v, 0), 1)
		idx := int(v * float64(len(runes)-1))
		style := barStyle
		if v > 0.75 {
			style = barHotStyle
		} else if v == 0 {
			style = barEmptyStyle
		}
		b.WriteString(style.Render(strings.Repeat(string(runes[idx]), meterWidth)))
	}
	return b.String()
}

func (m Model) renderTranscript() string {
	final := strings.TrimSpace(m.snapshot.FinalText)
	interim := strings.TrimSpace(m.snapshot.InterimText)
	if final == "" && interim == "" {
		return dimStyle.Render("Press space and start talking.")
	}

	var parts []string
	if final != "" {
		parts = append(parts, finalStyle.Render(final))
	}
	if interim != "" {
		parts = append(parts, interimStyle.Render(interim))
	}
	box := transcriptBox
	if m.width > 4 {
		box = box.Width(m.width - 2)
	}
	return box.Render(strings.Join(parts, " "))
}

func (m Model) renderHistory() string {
	lines := []string{dimStyle.Render("Recent")}
	for _, item := range m.recent {
		text := []rune(item.Content)
		if len(text) > 60 {
			text = append(text[:57], []rune("...")...)
		}
		lines = append(lines, dimStyle.Render(item.CreatedAt.Local().Format("Jan 02 15:04"))+"  "+string(text))
	}
	return strings.Join(lines, "\n")
}
