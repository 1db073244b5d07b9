package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

func textLine(guid, speaker, dialogue string, next ...string) scenario.Line {
	return scenario.Line{GUID: guid, Next: next, Payload: scenario.TextPayload{
		Speaker:  scenario.InlineText(speaker),
		Dialogue: scenario.InlineText(dialogue),
	}}
}

// villageStore builds scenario 1:
//
//	img -> t1 -> o1 -[0]-> t2 -> d1
//	             o1 -[1]-> t3 -> ev1
//
// and scenario 2, which has two unlinked lines and so no unique entry.
func villageStore(t *testing.T) *scenario.Store {
	t.Helper()
	s := scenario.NewStore()
	s.AddLine(1, scenario.Line{GUID: "img", Next: []string{"t1"}, Payload: scenario.ImagePayload{
		Sprite: "guard.png", Color: scenario.Color{R: 1, G: 1, B: 1, A: 1}}})
	s.AddLine(1, textLine("t1", "Guard", "Halt! Who goes there?", "o1"))
	s.AddLine(1, scenario.Line{GUID: "o1", Next: []string{"t2", "t3"}, Payload: scenario.SelectPayload{
		Options: []scenario.Text{scenario.InlineText("A friend."), scenario.KeyText("Option_o11")}}})
	s.AddLine(1, textLine("t2", "Guard", "Welcome, friend.", "d1"))
	s.AddLine(1, scenario.Line{GUID: "d1", Payload: scenario.DestroyPayload{Target: "img"}})
	s.AddLine(1, textLine("t3", "Guard", "Then begone!", "ev1"))
	s.AddLine(1, scenario.Line{GUID: "ev1", Payload: scenario.EventPayload{
		Event: scenario.EventTeleport, Params: map[string]any{"map": "outskirts"}}})

	s.AddLine(2, textLine("a", "", "a"))
	s.AddLine(2, textLine("b", "", "b"))
	s.Finalize()
	return s
}

type mapLookup map[string]string

func (m mapLookup) Lookup(key string) (string, bool) {
	s, ok := m[key]
	return s, ok
}

// mockExecutor records shown steps.
type mockExecutor struct {
	steps []Step
	err   error
}

func (m *mockExecutor) ShowLine(step Step) error {
	m.steps = append(m.steps, step)
	return m.err
}

func eventNames() []string {
	var names []string
	for _, e := range events.Snapshot() {
		names = append(names, e.Name)
	}
	return names
}

func countEvents(name string) int {
	n := 0
	for _, e := range events.Snapshot() {
		if e.Name == name {
			n++
		}
	}
	return n
}

func mustCurrent(t *testing.T, rt *Runtime, want string) {
	t.Helper()
	line, ok := rt.Current()
	if !ok {
		t.Fatalf("expected current line %s, runtime has none", want)
	}
	if line.GUID != want {
		t.Fatalf("current = %s, want %s", line.GUID, want)
	}
}

func TestStartScenarioRunsToFirstText(t *testing.T) {
	events.Clear()
	rt := NewRuntime(villageStore(t))
	exec := &mockExecutor{}
	rt.SetExecutor(exec)

	if err := rt.StartScenario(1); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if !rt.IsActive() || rt.ActiveScenario() != 1 {
		t.Fatal("expected scenario 1 active")
	}
	if rt.SessionID() == "" {
		t.Error("expected a session ID")
	}
	mustCurrent(t, rt, "t1")

	want := []string{"scenario.started", "line.shown", "line.shown"}
	got := eventNames()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	for _, e := range events.Snapshot() {
		if e.Fields["session_id"] != rt.SessionID() {
			t.Errorf("%s missing session_id", e.Name)
		}
	}

	if len(exec.steps) != 2 || exec.steps[0].Line.GUID != "img" || exec.steps[1].View.Dialogue != "Halt! Who goes there?" {
		t.Errorf("unexpected executor steps: %+v", exec.steps)
	}
}

func TestChoiceFlow(t *testing.T) {
	events.Clear()
	rt := NewRuntime(villageStore(t))
	rt.SetLookup(mapLookup{"Option_o11": "None of your business."})

	if err := rt.StartScenario(1); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := rt.Select(0); !errors.Is(err, ErrNotAChoice) {
		t.Errorf("expected ErrNotAChoice on text line, got %v", err)
	}
	if err := rt.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	mustCurrent(t, rt, "o1")

	st := rt.Status()
	if st.Current == nil || len(st.Current.Options) != 2 || st.Current.Options[1] != "None of your business." {
		t.Errorf("unexpected status view: %+v", st.Current)
	}

	if err := rt.Advance(); !errors.Is(err, ErrChoicePending) {
		t.Errorf("expected ErrChoicePending, got %v", err)
	}
	if err := rt.Select(2); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
	if err := rt.Select(-1); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption for negative index, got %v", err)
	}
	mustCurrent(t, rt, "o1")

	if err := rt.Select(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	mustCurrent(t, rt, "t3")

	var selected events.Event
	for _, e := range events.Snapshot() {
		if e.Name == "option.selected" {
			selected = e
		}
	}
	if selected.Fields["label"] != "None of your business." || selected.Fields["index"] != 1 {
		t.Errorf("unexpected option.selected fields: %v", selected.Fields)
	}

	// t3 -> ev1 -> end
	if err := rt.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if rt.IsActive() {
		t.Error("expected scenario to complete")
	}
	if countEvents("scenario.completed") != 1 {
		t.Errorf("expected scenario.completed, got %v", eventNames())
	}
	if err := rt.Advance(); !errors.Is(err, ErrNoActiveScenario) {
		t.Errorf("expected ErrNoActiveScenario after completion, got %v", err)
	}
}

func TestFirstBranchEndsAfterDestroy(t *testing.T) {
	events.Clear()
	rt := NewRuntime(villageStore(t))
	exec := &mockExecutor{}
	rt.SetExecutor(exec)

	rt.StartScenario(1)
	rt.Advance()
	if err := rt.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	mustCurrent(t, rt, "t2")
	if err := rt.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if rt.IsActive() {
		t.Fatal("expected completion after d1")
	}

	var path []string
	for _, s := range exec.steps {
		path = append(path, s.Line.GUID)
	}
	want := []string{"img", "t1", "o1", "t2", "d1"}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, path[i], want[i])
		}
	}
}

func TestStartScenarioErrors(t *testing.T) {
	rt := NewRuntime(villageStore(t))

	if err := rt.StartScenario(99); !errors.Is(err, scenario.ErrScenarioNotFound) {
		t.Errorf("expected ErrScenarioNotFound, got %v", err)
	}
	if err := rt.StartScenario(2); !errors.Is(err, ErrNotPlayable) {
		t.Errorf("expected ErrNotPlayable, got %v", err)
	}
	if rt.IsActive() {
		t.Error("failed start must not activate")
	}
}

func TestStop(t *testing.T) {
	events.Clear()
	rt := NewRuntime(villageStore(t))

	if err := rt.Stop(); !errors.Is(err, ErrNoActiveScenario) {
		t.Errorf("expected ErrNoActiveScenario, got %v", err)
	}

	rt.StartScenario(1)
	if err := rt.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rt.IsActive() {
		t.Error("expected inactive after stop")
	}
	if _, ok := rt.Current(); ok {
		t.Error("expected no current line after stop")
	}
	if countEvents("scenario.stopped") != 1 {
		t.Errorf("expected scenario.stopped, got %v", eventNames())
	}
}

func TestRestartReplacesSession(t *testing.T) {
	events.Clear()
	rt := NewRuntime(villageStore(t))

	rt.StartScenario(1)
	first := rt.SessionID()
	rt.Advance()
	rt.StartScenario(1)

	if rt.SessionID() == first {
		t.Error("expected a new session on restart")
	}
	mustCurrent(t, rt, "t1")
	if st := rt.Status(); st.LinesShown != 2 {
		t.Errorf("expected line count reset, got %d", st.LinesShown)
	}
}

func TestExecutorErrorEmitsHandlerError(t *testing.T) {
	events.Clear()
	rt := NewRuntime(villageStore(t))
	rt.SetExecutor(&mockExecutor{err: &HandlerError{Topic: "dialogue/display", Reason: "MQTT publish failed"}})

	if err := rt.StartScenario(1); err != nil {
		t.Fatalf("executor errors must not stop playback: %v", err)
	}
	mustCurrent(t, rt, "t1")

	if n := countEvents("handler.error"); n != 2 {
		t.Fatalf("expected 2 handler.error events, got %d", n)
	}
	for _, e := range events.Snapshot() {
		if e.Name == "handler.error" && e.Fields["topic"] != "dialogue/display" {
			t.Errorf("expected topic on handler.error, got %v", e.Fields)
		}
	}
}

func TestScenariosAndHasScenario(t *testing.T) {
	rt := NewRuntime(villageStore(t))
	if ids := rt.Scenarios(); len(ids) != 2 || ids[0] != 1 {
		t.Errorf("unexpected scenarios: %v", ids)
	}
	if !rt.HasScenario(1) || rt.HasScenario(3) {
		t.Error("HasScenario mismatch")
	}
}

func TestLineViewFields(t *testing.T) {
	line := scenario.Line{GUID: "ev1", Payload: scenario.EventPayload{Event: scenario.EventTeleport}}
	f := NewLineView(&line, nil).Fields(4)
	if f["event"] != "teleport" || f["scenario_id"] != 4 || f["kind"] != "event" {
		t.Errorf("unexpected fields: %v", f)
	}

	text := textLine("t", "Ann", "")
	text.Payload = scenario.TextPayload{Speaker: scenario.KeyText("name_ann"), Dialogue: scenario.KeyText("Dialogue_t")}
	v := NewLineView(&text, mapLookup{"name_ann": "Ann"})
	if v.Speaker != "Ann" || v.Dialogue != "Dialogue_t" {
		t.Errorf("unexpected view: %+v", v)
	}
}

func TestCycleWithoutTextStops(t *testing.T) {
	events.Clear()
	s := scenario.NewStore()
	s.AddLine(1, textLine("t1", "", "Watch this.", "a"))
	s.AddLine(1, scenario.Line{GUID: "a", Next: []string{"b"}, Payload: scenario.ImagePayload{Sprite: "spark.png"}})
	s.AddLine(1, scenario.Line{GUID: "b", Next: []string{"a"}, Payload: scenario.DestroyPayload{Target: "a"}})
	s.Finalize()

	rt := NewRuntime(s)
	if err := rt.StartScenario(1); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- rt.Advance() }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrRunaway) {
			t.Errorf("expected ErrRunaway, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Advance did not return on a cycle of non-text lines")
	}

	if rt.IsActive() {
		t.Error("expected the session to be stopped")
	}
	var reason interface{}
	for _, e := range events.Snapshot() {
		if e.Name == "scenario.stopped" {
			reason = e.Fields["reason"]
		}
	}
	if reason != "runaway" {
		t.Errorf("expected scenario.stopped with reason, got %v", eventNames())
	}
}

func TestAdvanceEndsOptionsWithoutBranches(t *testing.T) {
	events.Clear()
	s := scenario.NewStore()
	s.AddLine(1, textLine("t1", "", "Choose.", "o1"))
	s.AddLine(1, scenario.Line{GUID: "o1", Next: []string{"gone"}, Payload: scenario.SelectPayload{
		Options: []scenario.Text{scenario.InlineText("Leave")}}})
	s.Finalize()

	rt := NewRuntime(s)
	rt.StartScenario(1)
	if err := rt.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	mustCurrent(t, rt, "o1")

	if err := rt.Select(0); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
	if err := rt.Advance(); err != nil {
		t.Fatalf("advance past options with no branches: %v", err)
	}
	if rt.IsActive() {
		t.Error("expected the scenario to complete")
	}
	if countEvents("scenario.completed") != 1 {
		t.Errorf("expected scenario.completed, got %v", eventNames())
	}
}
