package display

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hammamikhairi/voicechat/internal/conversation"
	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/pipeline"
)

type fakeCtrl struct {
	listening bool
	begins    int
	ends      int
	beginErr  error
	events    chan pipeline.Event
}

func (f *fakeCtrl) Begin() error {
	f.begins++
	if f.beginErr != nil {
		return f.beginErr
	}
	f.listening = true
	return nil
}

func (f *fakeCtrl) End(ctx context.Context) (<-chan pipeline.Event, error) {
	f.ends++
	if !f.listening {
		return nil, domain.ErrNotListening
	}
	f.listening = false
	return f.events, nil
}

func (f *fakeCtrl) Listening() bool { return f.listening }

var space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}

func newTestModel(ctrl *fakeCtrl) model {
	return newModel(context.Background(), ctrl, logger.New(logger.LevelOff, nil))
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func TestSpaceTogglesListening(t *testing.T) {
	ctrl := &fakeCtrl{events: make(chan pipeline.Event, 1)}
	m := newTestModel(ctrl)

	m, _ = update(t, m, space)
	if m.status != StatusListening || ctrl.begins != 1 {
		t.Fatalf("after first press: status=%v begins=%d", m.status, ctrl.begins)
	}

	m, cmd := update(t, m, space)
	if m.status != StatusProcessing || ctrl.ends != 1 {
		t.Fatalf("after second press: status=%v ends=%d", m.status, ctrl.ends)
	}
	if m.events == nil || cmd == nil {
		t.Fatal("expected the model to wait on turn events")
	}
	if !strings.Contains(m.View(), "Processing") {
		t.Fatalf("view %q", m.View())
	}
}

func TestPressIgnoredWhileTurnInFlight(t *testing.T) {
	ctrl := &fakeCtrl{events: make(chan pipeline.Event)}
	m := newTestModel(ctrl)
	m, _ = update(t, m, space)
	m, _ = update(t, m, space)

	m, cmd := update(t, m, space)
	if ctrl.begins != 1 || ctrl.ends != 1 {
		t.Fatalf("press during turn reached controller: begins=%d ends=%d", ctrl.begins, ctrl.ends)
	}
	if cmd != nil || m.status != StatusProcessing {
		t.Fatalf("status=%v cmd=%v", m.status, cmd)
	}
}

func TestBeginFailureStaysReady(t *testing.T) {
	ctrl := &fakeCtrl{beginErr: domain.ErrTurnInFlight}
	m := newTestModel(ctrl)
	m, _ = update(t, m, space)
	if m.status != StatusReady {
		t.Fatalf("status = %v, want Ready", m.status)
	}
}

func TestTurnEventsUpdateChatAndStatus(t *testing.T) {
	ctrl := &fakeCtrl{events: make(chan pipeline.Event, 4)}
	m := newTestModel(ctrl)
	m, _ = update(t, m, space)
	m, _ = update(t, m, space)

	m, _ = update(t, m, eventMsg{Kind: pipeline.EventTranscribed, TurnID: 1, Text: ""})
	m, _ = update(t, m, eventMsg{Kind: pipeline.EventReplied, TurnID: 1, Reply: "hi", OutputPath: "/tmp/o.aiff"})
	if m.status != StatusSpeaking {
		t.Fatalf("status = %v, want Speaking", m.status)
	}
	m, _ = update(t, m, eventMsg{Kind: pipeline.EventSpoken, TurnID: 1})
	m, _ = update(t, m, eventMsg{
		Kind:   pipeline.EventDone,
		TurnID: 1,
		Result: &domain.TurnResult{TurnID: 1, LogErr: errors.New("disk full")},
	})
	m, _ = update(t, m, turnClosedMsg{})

	if m.status != StatusReady || m.events != nil {
		t.Fatalf("turn not released: status=%v", m.status)
	}
	want := []chatLine{
		{participant, conversation.LineNoSpeech},
		{assistant, "hi"},
		{notice, "turn 1 was not logged: disk full"},
	}
	if len(m.lines) != len(want) {
		t.Fatalf("lines = %+v", m.lines)
	}
	for i := range want {
		if m.lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, m.lines[i], want[i])
		}
	}
}

func TestRepliedWithoutAudioKeepsProcessing(t *testing.T) {
	ctrl := &fakeCtrl{events: make(chan pipeline.Event, 1)}
	m := newTestModel(ctrl)
	m, _ = update(t, m, space)
	m, _ = update(t, m, space)
	m, _ = update(t, m, eventMsg{Kind: pipeline.EventReplied, TurnID: 1, Reply: conversation.LineNoSpeech})
	if m.status != StatusProcessing {
		t.Fatalf("status = %v, want Processing", m.status)
	}
}

func TestFailedTurnShowsNotice(t *testing.T) {
	ctrl := &fakeCtrl{events: make(chan pipeline.Event, 1)}
	m := newTestModel(ctrl)
	m, _ = update(t, m, space)
	m, _ = update(t, m, space)
	m, _ = update(t, m, eventMsg{Kind: pipeline.EventFailed, TurnID: 1, Err: errors.New("whisper exited 1")})
	if len(m.lines) != 1 || m.lines[0].who != notice || !strings.Contains(m.lines[0].text, "whisper exited 1") {
		t.Fatalf("lines = %+v", m.lines)
	}
}

func TestWaitForEventReportsClose(t *testing.T) {
	ch := make(chan pipeline.Event, 1)
	ch <- pipeline.Event{Kind: pipeline.EventDone, TurnID: 3}
	close(ch)

	if msg, ok := waitForEvent(ch)().(eventMsg); !ok || msg.TurnID != 3 {
		t.Fatalf("first message = %#v", msg)
	}
	if _, ok := waitForEvent(ch)().(turnClosedMsg); !ok {
		t.Fatal("expected turnClosedMsg after close")
	}
}

func TestQuitKeys(t *testing.T) {
	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	} {
		m := newTestModel(&fakeCtrl{})
		_, cmd := update(t, m, k)
		if cmd == nil {
			t.Fatalf("%q: no command", k.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%q: expected quit", k.String())
		}
	}
}

func TestRenderBannerCentres(t *testing.T) {
	out := renderBanner("ab\nabcd\n", "", 10)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[1], "   abcd") {
		t.Fatalf("expected 3 columns of padding, got %q", lines[1])
	}
}
