// Package playback runs compiled scenarios for a live audience: it owns the
// active cursor, records each step as an event and hands shown lines to an
// executor that puts them on screen.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/log"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

var (
	ErrNoActiveScenario = errors.New("no active scenario")
	ErrNotPlayable      = errors.New("scenario has no unique entry line")
	ErrChoicePending    = errors.New("current line is waiting for an option")
	ErrNotAChoice       = errors.New("current line has no options")
	ErrInvalidOption    = errors.New("option index out of range")
	ErrRunaway          = errors.New("scenario loops without a text or options line")
)

// Runtime plays one scenario at a time. It is safe for concurrent use.
type Runtime struct {
	mu       sync.Mutex
	store    *scenario.Store
	lookup   scenario.Lookup
	executor LineExecutor
	logger   *slog.Logger

	scene      *scenario.Scene
	cursor     *scenario.Cursor
	scenarioID int
	sessionID  string
	shown      int
	selections []int

	// replaying suppresses events and executor calls while restoring.
	replaying bool
}

// NewRuntime creates a runtime over a finalized store.
func NewRuntime(store *scenario.Store) *Runtime {
	return &Runtime{
		store:  store,
		logger: log.WithComponent("playback"),
	}
}

// SetExecutor sets where shown lines are sent.
func (r *Runtime) SetExecutor(executor LineExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executor = executor
}

// SetLookup sets the string tables used to resolve key-form text.
func (r *Runtime) SetLookup(l scenario.Lookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup = l
}

// StartScenario begins scenario id from its entry line, replacing any active
// scenario, and runs until the first line that waits for the player.
func (r *Runtime) StartScenario(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	scene, err := r.store.GetScene(id)
	if err != nil {
		return err
	}
	if !scene.Playable() {
		return fmt.Errorf("%w: scenario %d (%s)", ErrNotPlayable, id, scene.Entry())
	}

	r.resetState()
	r.scene = scene
	r.cursor = scene.Begin()
	r.scenarioID = id
	r.sessionID = uuid.NewString()

	r.emitEvent("scenario.started", map[string]interface{}{
		"scenario_id": id,
		"lines":       scene.Len(),
	})

	return r.step()
}

// Advance moves past the current line. Lines with options must be answered
// with Select instead.
func (r *Runtime) Advance() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor == nil {
		return ErrNoActiveScenario
	}
	if line, ok := r.cursor.Current(); ok && line.Choice() && r.cursor.Branches() > 0 {
		return ErrChoicePending
	}
	return r.step()
}

// Select answers the current options line with option i and continues.
func (r *Runtime) Select(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor == nil {
		return ErrNoActiveScenario
	}
	line, ok := r.cursor.Current()
	if !ok || !line.Choice() {
		return ErrNotAChoice
	}
	if i < 0 || i >= r.cursor.Branches() {
		return fmt.Errorf("%w: %d of %d", ErrInvalidOption, i, r.cursor.Branches())
	}

	label := ""
	if p, ok := line.Payload.(scenario.SelectPayload); ok && i < len(p.Options) {
		label = p.Options[i].Resolve(r.lookup)
	}
	r.selections = append(r.selections, i)
	r.emitEvent("option.selected", map[string]interface{}{
		"scenario_id": r.scenarioID,
		"line_guid":   line.GUID,
		"index":       i,
		"label":       label,
	})

	r.cursor.SelectBranch(i)
	return r.step()
}

// Stop abandons the active scenario.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor == nil {
		return ErrNoActiveScenario
	}
	r.cursor.Invalidate()
	r.emitEvent("scenario.stopped", map[string]interface{}{
		"scenario_id": r.scenarioID,
		"lines_shown": r.shown,
	})
	r.resetState()
	return nil
}

// step advances the cursor, showing each line, until a text or options line
// is reached or the scenario ends. A scenario that shows more lines than it
// has without reaching one is cycling and gets stopped. Must hold mu.
func (r *Runtime) step() error {
	limit := r.scene.Len()
	for skipped := 0; ; skipped++ {
		if skipped > limit {
			return r.abort()
		}
		line, ok := r.cursor.Advance()
		if !ok {
			r.complete()
			return nil
		}
		r.show(line)
		switch line.Kind() {
		case scenario.KindText, scenario.KindSelect:
			return nil
		}
	}
}

func (r *Runtime) abort() error {
	id := r.scenarioID
	r.logger.Error("scenario stopped: no text or options line reached",
		slog.Int("scenario_id", id),
		slog.Int("lines_shown", r.shown))
	r.cursor.Invalidate()
	r.emitEvent("scenario.stopped", map[string]interface{}{
		"scenario_id": id,
		"lines_shown": r.shown,
		"reason":      "runaway",
	})
	r.resetState()
	return fmt.Errorf("%w: scenario %d", ErrRunaway, id)
}

func (r *Runtime) show(line *scenario.Line) {
	r.shown++
	if r.replaying {
		return
	}

	view := NewLineView(line, r.lookup)
	r.emitEvent("line.shown", view.Fields(r.scenarioID))

	if r.executor == nil {
		return
	}
	step := Step{SessionID: r.sessionID, ScenarioID: r.scenarioID, Line: line, View: view}
	if err := r.executor.ShowLine(step); err != nil {
		r.logger.Warn("line executor failed",
			slog.Int("scenario_id", r.scenarioID),
			slog.String("line_guid", line.GUID),
			slog.Any("error", err))
		fields := map[string]interface{}{
			"session_id":  r.sessionID,
			"scenario_id": r.scenarioID,
			"line_guid":   line.GUID,
			"kind":        string(line.Kind()),
			"error":       err.Error(),
		}
		var herr *HandlerError
		if errors.As(err, &herr) && herr.Topic != "" {
			fields["topic"] = herr.Topic
		}
		events.Emit("error", "handler.error", err.Error(), fields)
	}
}

func (r *Runtime) complete() {
	r.emitEvent("scenario.completed", map[string]interface{}{
		"scenario_id": r.scenarioID,
		"lines_shown": r.shown,
		"selections":  len(r.selections),
	})
	r.resetState()
}

func (r *Runtime) emitEvent(name string, fields map[string]interface{}) {
	if r.replaying {
		return
	}
	fields["session_id"] = r.sessionID
	if _, err := events.Emit("info", name, "", fields); err != nil {
		r.logger.Error("emit failed", slog.String("event", name), slog.Any("error", err))
	}
}

// resetState clears the session. Must hold mu.
func (r *Runtime) resetState() {
	r.scene = nil
	r.cursor = nil
	r.scenarioID = 0
	r.sessionID = ""
	r.shown = 0
	r.selections = nil
}

// IsActive returns true while a scenario is playing.
func (r *Runtime) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor != nil
}

// ActiveScenario returns the playing scenario ID, or 0.
func (r *Runtime) ActiveScenario() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scenarioID
}

// SessionID returns the ID stamped on the active session's events.
func (r *Runtime) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Current returns a copy of the line on screen.
func (r *Runtime) Current() (scenario.Line, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == nil {
		return scenario.Line{}, false
	}
	line, ok := r.cursor.Current()
	if !ok {
		return scenario.Line{}, false
	}
	return line.Clone(), true
}

func (r *Runtime) HasScenario(id int) bool {
	return r.store.Has(id)
}

// Scenarios lists the scenario IDs available to StartScenario.
func (r *Runtime) Scenarios() []int {
	return r.store.IDs()
}

// Status is a snapshot of the runtime for the API.
type Status struct {
	Active     bool      `json:"active"`
	ScenarioID int       `json:"scenario_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	LinesShown int       `json:"lines_shown"`
	Selections []int     `json:"selections,omitempty"`
	Current    *LineView `json:"current,omitempty"`
}

func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Active:     r.cursor != nil,
		ScenarioID: r.scenarioID,
		SessionID:  r.sessionID,
		LinesShown: r.shown,
		Selections: append([]int(nil), r.selections...),
	}
	if r.cursor != nil {
		if line, ok := r.cursor.Current(); ok {
			v := NewLineView(line, r.lookup)
			st.Current = &v
		}
	}
	return st
}
