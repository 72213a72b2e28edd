package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/voxnote/internal/daemon"
	"github.com/jwulff/voxnote/internal/note"
	"github.com/jwulff/voxnote/internal/session"
	"github.com/jwulff/voxnote/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

const commandTimeout = 10 * time.Second

// Focus tracks which part of the screen has keyboard focus.
type Focus int

const (
	FocusList Focus = iota
	FocusInput
)

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. The TUI owns the terminal, so it should write
// to a file.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

// WithStoreChanges makes the model reload the list whenever changes fires.
func WithStoreChanges(changes <-chan struct{}) Option {
	return func(m *Model) { m.changes = changes }
}

// Model is the root bubbletea model for the voxnote TUI.
type Model struct {
	notes   *note.Service
	session *session.Coordinator
	capture *daemon.Capture
	changes <-chan struct{}
	logger  *slog.Logger

	// Connection state
	evClient             *daemon.Client // status and error events
	connected            bool
	connError            string
	permissionsRequested bool

	// Recording state
	recording   bool
	starting    bool
	partials    <-chan string
	partialText string

	// Notes
	items    []note.Note
	selected int

	// UI state
	focus  Focus
	input  textinput.Model
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
}

// New creates a Model that stores notes through notes, records through
// coord and talks to the daemon through capture.
func New(notes *note.Service, coord *session.Coordinator, capture *daemon.Capture, opts ...Option) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a note and press Enter"
	input.PromptStyle = ui.PromptStyle
	input.PlaceholderStyle = ui.PlaceholderStyle
	input.CharLimit = 4096

	m := Model{
		notes:      notes,
		session:    coord,
		capture:    capture,
		input:      input,
		focus:      FocusList,
		statusText: "Connecting to voxnote-daemon...",
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m
}

// Init connects to the daemon, loads the notes and starts watching the store.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		connectCmd(m.capture.SocketPath()),
		loadNotesCmd(m.notes),
	}
	if m.changes != nil {
		cmds = append(cmds, watchCmd(m.changes))
	}
	return tea.Batch(cmds...)
}

// connectCmd attempts to connect to the daemon with two connections:
// one for commands, one for event subscription.
func connectCmd(sockPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(sockPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		evClient, err := daemon.Connect(sockPath)
		if err != nil {
			client.Close()
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd subscribes the event client and starts reading events.
func subscribeCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		if err := evClient.Subscribe(daemon.EventStatus, daemon.EventError); err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// requestPermissionsCmd asks for microphone and speech access.
func requestPermissionsCmd(p session.PermissionProvider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		granted, err := p.RequestPermissions(ctx, []session.Capability{
			session.CapabilityMicrophone,
			session.CapabilitySpeech,
		})
		return PermissionsMsg{Granted: granted, Err: err}
	}
}

// loadNotesCmd reads the full note list.
func loadNotesCmd(svc *note.Service) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		notes, err := svc.List(ctx)
		return NotesLoadedMsg{Notes: notes, Err: err}
	}
}

// saveTextCmd stores a text note.
func saveTextCmd(svc *note.Service, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		n, err := svc.AddText(ctx, text)
		if errors.Is(err, note.ErrEmptyContent) {
			return nil
		}
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("save note: %w", err)}
		}
		return NoteSavedMsg{Note: n}
	}
}

// deleteNoteCmd removes a note.
func deleteNoteCmd(svc *note.Service, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := svc.Delete(ctx, id); err != nil {
			return ErrorMsg{Err: fmt.Errorf("delete note: %w", err)}
		}
		return NoteDeletedMsg{ID: id}
	}
}

// startSessionCmd begins a recording session.
func startSessionCmd(coord *session.Coordinator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		partials, err := coord.Start(ctx)
		return SessionStartedMsg{Partials: partials, Err: err}
	}
}

// stopSessionCmd ends the recording session, saving it if anything was said.
func stopSessionCmd(coord *session.Coordinator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		n, err := coord.Stop(ctx)
		return SessionStoppedMsg{Note: n, Err: err}
	}
}

// readPartialCmd waits for the next partial transcript of a session.
func readPartialCmd(partials <-chan string) tea.Cmd {
	return func() tea.Msg {
		text, ok := <-partials
		if !ok {
			return PartialsClosedMsg{ch: partials}
		}
		return PartialTextMsg{Text: text, ch: partials}
	}
}

// playCmd plays an audio note through the daemon.
func playCmd(player session.Player, n note.Note) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := player.Play(ctx, n.AudioPath); err != nil {
			return ErrorMsg{Err: fmt.Errorf("play: %w", err)}
		}
		return PlayingMsg{Note: n}
	}
}

// watchCmd waits for the store watcher to report an external write.
func watchCmd(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return StoreChangedMsg{}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, m.width-4)
		return m, nil

	case DaemonConnectedMsg:
		m.capture.Attach(msg.Client)
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		cmds := []tea.Cmd{subscribeCmd(m.evClient)}
		if !m.permissionsRequested {
			m.permissionsRequested = true
			cmds = append(cmds, requestPermissionsCmd(m.capture))
		}
		return m, tea.Batch(cmds...)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Daemon not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		if m.evClient == nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.logger.Warn("daemon connection lost", "err", msg.Err)
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		m.capture.Detach()
		if m.evClient != nil {
			m.evClient.Close()
			m.evClient = nil
		}
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.capture.SocketPath())

	case PermissionsMsg:
		if msg.Err != nil {
			return m, m.showError(fmt.Sprintf("permissions: %v", msg.Err))
		}
		var denied []string
		for _, c := range []session.Capability{session.CapabilityMicrophone, session.CapabilitySpeech} {
			if !msg.Granted[c] {
				denied = append(denied, string(c))
			}
		}
		if len(denied) > 0 {
			return m, m.showError("permission denied: " + strings.Join(denied, ", "))
		}
		return m, nil

	case NotesLoadedMsg:
		if msg.Err != nil {
			m.logger.Error("load notes", "err", msg.Err)
			return m, m.showError(msg.Err.Error())
		}
		m.items = msg.Notes
		if m.selected >= len(m.items) {
			m.selected = max(0, len(m.items)-1)
		}
		return m, nil

	case NoteSavedMsg:
		m.input.Reset()
		return m, loadNotesCmd(m.notes)

	case NoteDeletedMsg:
		return m, loadNotesCmd(m.notes)

	case StoreChangedMsg:
		return m, tea.Batch(loadNotesCmd(m.notes), watchCmd(m.changes))

	case SessionStartedMsg:
		m.starting = false
		if msg.Err != nil {
			m.statusText = "Idle"
			return m, m.showError(msg.Err.Error())
		}
		m.recording = true
		m.partials = msg.Partials
		m.partialText = ""
		m.statusText = "Recording"
		return m, readPartialCmd(msg.Partials)

	case PartialTextMsg:
		if msg.ch != m.partials {
			// Drain a stale session's stream without showing it.
			return m, readPartialCmd(msg.ch)
		}
		m.partialText = msg.Text
		return m, readPartialCmd(msg.ch)

	case PartialsClosedMsg:
		if msg.ch == m.partials {
			m.partials = nil
		}
		return m, nil

	case SessionStoppedMsg:
		m.recording = false
		m.partialText = ""
		m.statusText = "Idle"
		if msg.Err != nil {
			return m, tea.Batch(m.showError(msg.Err.Error()), loadNotesCmd(m.notes))
		}
		if msg.Note == nil {
			m.statusText = "Nothing heard, recording discarded"
		}
		return m, loadNotesCmd(m.notes)

	case PlayingMsg:
		m.statusText = "Playing: " + msg.Note.Title()
		return m, nil

	case ErrorMsg:
		m.logger.Warn("action failed", "err", msg.Err)
		return m, m.showError(msg.Err.Error())

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// showError puts msg in the error bar and schedules it to clear.
func (m *Model) showError(msg string) tea.Cmd {
	m.errorMessage = msg
	m.errorTransient = true
	return clearTransientErrorCmd()
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	switch ev.Event {
	case daemon.EventStatus:
		if ev.Recording != nil && !*ev.Recording && m.recording {
			m.logger.Warn("daemon reports capture stopped during a session")
		}

	case daemon.EventError:
		m.errorMessage = ev.Message
		if ev.Transient != nil && *ev.Transient {
			m.errorTransient = true
			return clearTransientErrorCmd()
		}
	}
	return nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m.quit()
	}

	if m.focus == FocusInput {
		switch key {
		case KeyTab, KeyEsc:
			m.focus = FocusList
			m.input.Blur()
			return m, nil
		case KeyEnter:
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			return m, saveTextCmd(m.notes, text)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key {
	case KeyQuit, KeyQuitUpper:
		return m.quit()

	case KeyTab:
		m.focus = FocusInput
		return m, m.input.Focus()

	case KeySpace:
		if m.recording {
			m.statusText = "Saving..."
			return m, stopSessionCmd(m.session)
		}
		if !m.connected || m.starting {
			return m, nil
		}
		m.starting = true
		m.statusText = "Starting..."
		return m, startSessionCmd(m.session)

	case KeyUp, KeyK:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyDown, KeyJ:
		if m.selected < len(m.items)-1 {
			m.selected++
		}
		return m, nil

	case KeyEnter:
		n, ok := m.selectedNote()
		if !ok {
			return m, nil
		}
		switch n.Kind {
		case note.KindAudio:
			if !m.connected {
				return m, m.showError("daemon not connected")
			}
			return m, playCmd(m.capture, n)
		case note.KindText:
			return m, nil
		}
		return m, nil

	case KeyDelete, KeyDeleteUp:
		if n, ok := m.selectedNote(); ok {
			return m, deleteNoteCmd(m.notes, n.ID)
		}
		return m, nil
	}

	return m, nil
}

// quit ends the program. An active recording is stopped and saved first.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.evClient != nil {
		m.evClient.Close()
		m.evClient = nil
	}
	if m.recording {
		return m, tea.Sequence(stopSessionCmd(m.session), tea.Quit)
	}
	return m, tea.Quit
}

func (m Model) selectedNote() (note.Note, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return note.Note{}, false
	}
	return m.items[m.selected], true
}

func (m Model) listVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + dividers(2) + input(1) + error(1) + footer(1) + panel title(1)
	reserved := 8
	return max(3, m.height-reserved)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderNoteList())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.input.View())

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("VOXNOTE")

	var badge string
	switch {
	case m.connected:
		badge = ui.ConnectedBadgeStyle.Render(" ● daemon")
	case m.reconnecting:
		badge = ui.OfflineBadgeStyle.Render(" ○ daemon offline")
	default:
		badge = ui.DimStyle.Render(" ○ connecting")
	}

	return title + badge
}

func (m Model) renderStatusBar() string {
	var dot string
	if m.recording {
		dot = ui.RecordingDotStyle.Render("● REC")
	} else {
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}
	return dot + "  " + ui.StatusStyle.Render(m.statusText)
}

func (m Model) renderNoteList() string {
	height := m.listVisibleLines()

	header := fmt.Sprintf("NOTES (%d)", len(m.items))
	if m.focus == FocusList {
		header = ui.PanelTitleActiveStyle.Render(header)
	} else {
		header = ui.PanelTitleStyle.Render(header)
	}

	lines := []string{header}

	if m.recording {
		textWidth := max(10, m.width-6)
		wrapped := wrapText(m.partialText+"▌", textWidth)
		lines = append(lines, "  "+ui.RecordingDotStyle.Render("● ")+ui.PartialTextStyle.Render(wrapped[0]))
		for _, wl := range wrapped[1:] {
			lines = append(lines, "    "+ui.PartialTextStyle.Render(wl))
		}
	}

	if len(m.items) == 0 {
		if !m.recording {
			lines = append(lines, "")
			lines = append(lines, ui.DimStyle.Render("  No notes yet."))
			if m.connected {
				lines = append(lines, ui.DimStyle.Render("  Press Tab to type a note or Space to record one"))
			} else {
				lines = append(lines, ui.DimStyle.Render("  Press Tab to type a note"))
				lines = append(lines, ui.DimStyle.Render("  Recording needs voxnote-daemon"))
			}
		}
	} else {
		room := max(1, height-len(lines))
		start := 0
		if m.selected >= room {
			start = m.selected - room + 1
		}
		end := min(len(m.items), start+room)
		for i := start; i < end; i++ {
			lines = append(lines, m.renderNote(m.items[i], i == m.selected))
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderNote(n note.Note, selected bool) string {
	ts := ui.TimestampStyle.Render(n.CreatedAt.Local().Format("Jan 02 15:04"))

	var badge string
	switch n.Kind {
	case note.KindAudio:
		badge = ui.AudioBadgeStyle.Render("[AUDIO]")
	case note.KindText:
		badge = ui.TextBadgeStyle.Render("[TEXT] ")
	}

	// Prefix: "> Jan 02 15:04 [AUDIO] " = 23 chars visible
	title := truncateToWidth(n.Title(), max(10, m.width-23))
	marker := "  "
	if selected && m.focus == FocusList {
		marker = ui.SelectedStyle.Render("> ")
		title = ui.SelectedStyle.Render(title)
	} else if selected {
		marker = ui.DimStyle.Render("> ")
	}

	return marker + ts + " " + badge + " " + title
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	if m.focus == FocusInput {
		parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Save"))
		parts = append(parts, ui.FooterKeyStyle.Render("Esc")+ui.FooterDescStyle.Render(" List"))
		parts = append(parts, ui.FooterKeyStyle.Render("ctrl+c")+ui.FooterDescStyle.Render(" Quit"))
		return strings.Join(parts, "  ")
	}

	if m.recording {
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Stop"))
	} else if m.connected {
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Record"))
	}
	if n, ok := m.selectedNote(); ok {
		if n.Kind == note.KindAudio && m.connected {
			parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Play"))
		}
		parts = append(parts, ui.FooterKeyStyle.Render("d")+ui.FooterDescStyle.Render(" Delete"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("Tab")+ui.FooterDescStyle.Render(" Type"))
	parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
