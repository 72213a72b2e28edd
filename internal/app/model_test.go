package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwulff/voxnote/internal/daemon"
	"github.com/jwulff/voxnote/internal/note"
	"github.com/jwulff/voxnote/internal/session"
)

type memRepo struct {
	mu    sync.Mutex
	notes map[string]note.Note
}

func (r *memRepo) Insert(ctx context.Context, n note.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[n.ID] = n
	return nil
}

func (r *memRepo) List(ctx context.Context) ([]note.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]note.Note, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, id)
	return nil
}

func (r *memRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

// newTestModel builds a model whose daemon socket does not exist.
func newTestModel(t *testing.T) (Model, *memRepo) {
	t.Helper()
	repo := &memRepo{notes: map[string]note.Note{}}
	capture := daemon.NewCapture(filepath.Join(t.TempDir(), "missing.sock"), "en_US", nil)
	coord := session.New(capture, capture.Transcriber(), repo, t.TempDir())
	m := New(note.NewService(repo), coord, capture)
	m.width = 80
	m.height = 24
	return m, repo
}

func sampleNotes(t *testing.T) []note.Note {
	t.Helper()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	audio, err := note.NewAudio("a1", "call the plumber", "/data/audio/a1.m4a", base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("NewAudio: %v", err)
	}
	text, err := note.NewText("buy milk", base)
	if err != nil {
		t.Fatalf("NewText: %v", err)
	}
	return []note.Note{audio, text}
}

func typeText(m Model, s string) Model {
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestNewModel(t *testing.T) {
	m, _ := newTestModel(t)
	if m.connected {
		t.Error("new model should not be connected")
	}
	if m.recording {
		t.Error("new model should not be recording")
	}
	if m.focus != FocusList {
		t.Error("new model should focus the note list")
	}
}

func TestDaemonConnectError(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(DaemonConnectErrorMsg{Err: fmt.Errorf("connection refused")})
	model := updated.(Model)

	if model.connected {
		t.Error("should not be connected after error")
	}
	if !model.reconnecting {
		t.Error("should be reconnecting after connect error")
	}
	if cmd == nil {
		t.Error("connect error should schedule a reconnect")
	}
}

func TestNotesLoadedClampsSelection(t *testing.T) {
	m, _ := newTestModel(t)
	m.selected = 5

	m, _ = applyUpdate(m, NotesLoadedMsg{Notes: sampleNotes(t)})

	if len(m.items) != 2 {
		t.Fatalf("items = %d, want 2", len(m.items))
	}
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1", m.selected)
	}
}

func TestNotesLoadedErrorKeepsList(t *testing.T) {
	m, _ := newTestModel(t)
	m.items = sampleNotes(t)

	m, cmd := applyUpdate(m, NotesLoadedMsg{Err: errors.New("storage unavailable")})

	if len(m.items) != 2 {
		t.Errorf("items = %d, want the previous 2", len(m.items))
	}
	if m.errorMessage == "" || !m.errorTransient {
		t.Errorf("error = %q transient=%v", m.errorMessage, m.errorTransient)
	}
	if cmd == nil {
		t.Error("transient error should return a clear command")
	}
}

func TestComposeTextNote(t *testing.T) {
	m, repo := newTestModel(t)

	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != FocusInput {
		t.Fatal("tab should focus the compose line")
	}

	m = typeText(m, "buy milk")
	if got := m.input.Value(); got != "buy milk" {
		t.Fatalf("input = %q", got)
	}

	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should return a save command")
	}
	msg := cmd()
	saved, ok := msg.(NoteSavedMsg)
	if !ok {
		t.Fatalf("msg = %#v, want NoteSavedMsg", msg)
	}
	if saved.Note.Kind != note.KindText || saved.Note.Content != "buy milk" {
		t.Errorf("saved = %+v", saved.Note)
	}
	if repo.len() != 1 {
		t.Errorf("repo has %d notes, want 1", repo.len())
	}

	m, cmd = applyUpdate(m, saved)
	if m.input.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.input.Value())
	}
	if cmd == nil {
		t.Fatal("save should reload the list")
	}
	loaded, ok := cmd().(NotesLoadedMsg)
	if !ok {
		t.Fatal("reload should produce NotesLoadedMsg")
	}
	m, _ = applyUpdate(m, loaded)
	if len(m.items) != 1 || m.items[0].Content != "buy milk" {
		t.Errorf("items = %+v", m.items)
	}
}

func TestComposeBlankIsIgnored(t *testing.T) {
	m, repo := newTestModel(t)
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(m, "   ")

	_, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank input should not issue a command")
	}
	if repo.len() != 0 {
		t.Errorf("repo has %d notes, want 0", repo.len())
	}
}

func TestComposeKeysDoNotTriggerListActions(t *testing.T) {
	m, _ := newTestModel(t)
	m.connected = true
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})

	m = typeText(m, "q d")
	if m.starting || m.recording {
		t.Error("typing a space should not start recording")
	}
	if got := m.input.Value(); got != "q d" {
		t.Errorf("input = %q", got)
	}

	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.focus != FocusList {
		t.Error("esc should return focus to the list")
	}
}

func TestSpaceWhileDisconnected(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeySpace})
	if cmd != nil {
		t.Error("space should do nothing while disconnected")
	}
	if m.starting {
		t.Error("should not be starting")
	}
}

func TestStartWithoutCapabilitiesShowsError(t *testing.T) {
	m, _ := newTestModel(t)
	m.connected = true

	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeySpace})
	if cmd == nil {
		t.Fatal("space should start a session")
	}
	if !m.starting {
		t.Error("should be starting")
	}

	msg, ok := cmd().(SessionStartedMsg)
	if !ok {
		t.Fatal("start should produce SessionStartedMsg")
	}
	if !errors.Is(msg.Err, session.ErrCapabilityUnavailable) {
		t.Fatalf("err = %v, want ErrCapabilityUnavailable", msg.Err)
	}

	m, _ = applyUpdate(m, msg)
	if m.recording || m.starting {
		t.Error("failed start should leave the model idle")
	}
	if m.errorMessage == "" {
		t.Error("failed start should show an error")
	}
}

func TestSessionLifecycle(t *testing.T) {
	m, _ := newTestModel(t)
	m.connected = true
	ch := make(chan string, 1)

	m, cmd := applyUpdate(m, SessionStartedMsg{Partials: ch})
	if !m.recording {
		t.Fatal("should be recording")
	}
	if cmd == nil {
		t.Error("should start reading partials")
	}

	m, _ = applyUpdate(m, PartialTextMsg{Text: "hello world", ch: ch})
	if m.partialText != "hello world" {
		t.Errorf("partialText = %q", m.partialText)
	}
	if view := m.View(); !strings.Contains(view, "hello world") {
		t.Error("view should show the live transcript")
	}

	saved, _ := note.NewAudio("s1", "hello world", "/data/audio/s1.m4a", time.Now())
	m, cmd = applyUpdate(m, SessionStoppedMsg{Note: &saved})
	if m.recording {
		t.Error("should not be recording after stop")
	}
	if m.partialText != "" {
		t.Errorf("partialText = %q, want empty", m.partialText)
	}
	if cmd == nil {
		t.Error("stop should reload the list")
	}

	close(ch)
	m, _ = applyUpdate(m, PartialsClosedMsg{ch: ch})
	if m.partials != nil {
		t.Error("closed stream should be dropped")
	}
}

func TestSessionStoppedWithoutNote(t *testing.T) {
	m, _ := newTestModel(t)
	m.recording = true

	m, _ = applyUpdate(m, SessionStoppedMsg{})
	if !strings.Contains(m.statusText, "discarded") {
		t.Errorf("statusText = %q", m.statusText)
	}
}

func TestStalePartialIsIgnored(t *testing.T) {
	m, _ := newTestModel(t)
	old := make(chan string, 1)
	current := make(chan string, 1)

	m, _ = applyUpdate(m, SessionStartedMsg{Partials: current})
	m, _ = applyUpdate(m, PartialTextMsg{Text: "from before", ch: old})
	if m.partialText != "" {
		t.Errorf("partialText = %q, want empty", m.partialText)
	}

	m, _ = applyUpdate(m, PartialsClosedMsg{ch: old})
	if m.partials == nil {
		t.Error("closing a stale stream must not drop the current one")
	}
}

func TestListNavigation(t *testing.T) {
	m, _ := newTestModel(t)
	m.items = sampleNotes(t)

	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.selected != 1 {
		t.Errorf("after j, selected = %d, want 1", m.selected)
	}
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.selected != 1 {
		t.Errorf("down at the end, selected = %d, want 1", m.selected)
	}
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	if m.selected != 0 {
		t.Errorf("after k, selected = %d, want 0", m.selected)
	}
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyUp})
	if m.selected != 0 {
		t.Errorf("up at the top, selected = %d, want 0", m.selected)
	}
}

func TestDeleteSelectedNote(t *testing.T) {
	m, repo := newTestModel(t)
	for _, n := range sampleNotes(t) {
		repo.Insert(context.Background(), n)
	}
	m.items, _ = repo.List(context.Background())

	_, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if cmd == nil {
		t.Fatal("d should return a delete command")
	}
	msg, ok := cmd().(NoteDeletedMsg)
	if !ok {
		t.Fatal("delete should produce NoteDeletedMsg")
	}
	if msg.ID != "a1" {
		t.Errorf("deleted %q, want a1", msg.ID)
	}
	if repo.len() != 1 {
		t.Errorf("repo has %d notes, want 1", repo.len())
	}
}

func TestDeleteWithEmptyList(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if cmd != nil {
		t.Error("d on an empty list should do nothing")
	}
}

func TestEnterDispatchesOnKind(t *testing.T) {
	m, _ := newTestModel(t)
	m.items = sampleNotes(t)

	// Audio note while disconnected
	m, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.errorMessage == "" {
		t.Error("playing without a daemon should show an error")
	}
	if cmd == nil {
		t.Error("error should schedule a clear")
	}

	// Text note
	m.selected = 1
	_, cmd = applyUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("enter on a text note should do nothing")
	}
}

func TestPlayingMsg(t *testing.T) {
	m, _ := newTestModel(t)
	n := sampleNotes(t)[0]

	m, _ = applyUpdate(m, PlayingMsg{Note: n})
	if !strings.Contains(m.statusText, "call the plumber") {
		t.Errorf("statusText = %q", m.statusText)
	}
}

func TestPermissionsDenied(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = applyUpdate(m, PermissionsMsg{Granted: map[session.Capability]bool{
		session.CapabilityMicrophone: true,
	}})
	if !strings.Contains(m.errorMessage, "speech") {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}

	m.errorMessage = ""
	m, _ = applyUpdate(m, PermissionsMsg{Granted: map[session.Capability]bool{
		session.CapabilityMicrophone: true,
		session.CapabilitySpeech:     true,
	}})
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q, want empty", m.errorMessage)
	}
}

func TestStoreChangedReloads(t *testing.T) {
	changes := make(chan struct{}, 1)
	m, _ := newTestModel(t)
	m.changes = changes

	_, cmd := applyUpdate(m, StoreChangedMsg{})
	if cmd == nil {
		t.Error("store change should reload and keep watching")
	}
}

func TestWatchCmd(t *testing.T) {
	changes := make(chan struct{}, 1)
	changes <- struct{}{}
	if _, ok := watchCmd(changes)().(StoreChangedMsg); !ok {
		t.Error("signal should produce StoreChangedMsg")
	}

	close(changes)
	if msg := watchCmd(changes)(); msg != nil {
		t.Errorf("closed watcher should produce nil, got %#v", msg)
	}
}

func TestErrorEvent(t *testing.T) {
	m, _ := newTestModel(t)
	tr := true
	ev := daemon.Event{
		Event:     daemon.EventError,
		Message:   "test error",
		Transient: &tr,
	}

	cmd := m.handleEvent(ev)

	if m.errorMessage != "test error" {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
	if cmd == nil {
		t.Error("transient error should return a clear command")
	}
}

func TestClearTransientError(t *testing.T) {
	m, _ := newTestModel(t)
	m.errorMessage = "boom"
	m.errorTransient = true

	m, _ = applyUpdate(m, ClearTransientErrorMsg{})
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
}

func TestViewRendersKinds(t *testing.T) {
	m, _ := newTestModel(t)
	m.items = sampleNotes(t)

	view := m.View()
	for _, want := range []string{"NOTES (2)", "[AUDIO]", "[TEXT]", "call the plumber", "buy milk"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewEmptyList(t *testing.T) {
	m, _ := newTestModel(t)
	if view := m.View(); !strings.Contains(view, "No notes yet") {
		t.Error("empty list should show a hint")
	}
}

func TestViewWithoutSize(t *testing.T) {
	m, _ := newTestModel(t)
	m.width = 0
	view := m.View()
	if view != "Initializing..." {
		t.Errorf("view without size = %q, want 'Initializing...'", view)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("wrapText = %q, want %q", got, want)
	}
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	newModel, cmd := m.Update(msg)
	return newModel.(Model), cmd
}
