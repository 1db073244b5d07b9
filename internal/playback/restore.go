package playback

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/storage/postgres"
)

// DefaultRestoreLimit is the default number of events to load for restore.
const DefaultRestoreLimit = 1000

// EventSource returns logged events newest first. *postgres.Client
// satisfies it.
type EventSource interface {
	Query(limit int) ([]postgres.EventRow, error)
}

// RestoredState is the playback position reconstructed from the event log.
type RestoredState struct {
	SessionActive bool
	ScenarioID    int
	SessionID     string
	LinesShown    int
	Selections    []int
	LastLineGUID  string
}

// RestoreFromEvents loads recent events and reconstructs the session that
// was playing when they were written. It returns the number of rows read.
func RestoreFromEvents(src EventSource, limit int) (*RestoredState, int, error) {
	if src == nil {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = DefaultRestoreLimit
	}

	rows, err := src.Query(limit)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	// Query returns DESC
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return BuildRestoredState(rows), len(rows), nil
}

// BuildRestoredState folds events, oldest first, into a RestoredState.
// Only events of the most recently started session count.
func BuildRestoredState(rows []postgres.EventRow) *RestoredState {
	state := &RestoredState{}
	for _, row := range rows {
		session := ""
		if row.SessionID != nil {
			session = *row.SessionID
		} else if s, ok := row.Fields["session_id"].(string); ok {
			session = s
		}

		if row.Event == "scenario.started" {
			id, ok := toInt(row.Fields["scenario_id"])
			if !ok {
				continue
			}
			*state = RestoredState{SessionActive: true, ScenarioID: id, SessionID: session}
			continue
		}
		if !state.SessionActive || session != state.SessionID {
			continue
		}

		switch row.Event {
		case "line.shown":
			state.LinesShown++
			if guid, ok := row.Fields["line_guid"].(string); ok {
				state.LastLineGUID = guid
			}
		case "option.selected":
			if i, ok := toInt(row.Fields["index"]); ok {
				state.Selections = append(state.Selections, i)
			}
		case "scenario.completed", "scenario.stopped":
			*state = RestoredState{}
		}
	}
	return state
}

// toInt accepts the numeric forms a field takes before and after a JSON
// round trip.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// ApplyRestoredState replays a restored session onto the runtime: the
// scenario is restarted and advanced through the same lines and selections.
// This does NOT re-emit events or call the executor.
func (r *Runtime) ApplyRestoredState(state *RestoredState) error {
	if state == nil || !state.SessionActive || state.ScenarioID == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	scene, err := r.store.GetScene(state.ScenarioID)
	if err != nil {
		return fmt.Errorf("restore scenario %d: %w", state.ScenarioID, err)
	}
	if !scene.Playable() {
		return fmt.Errorf("restore scenario %d: %w", state.ScenarioID, ErrNotPlayable)
	}

	r.resetState()
	r.scene = scene
	r.cursor = scene.Begin()
	r.scenarioID = state.ScenarioID
	r.sessionID = state.SessionID

	r.replaying = true
	defer func() { r.replaying = false }()

	pending := state.Selections
	for r.cursor != nil && r.shown < state.LinesShown {
		if line, ok := r.cursor.Current(); ok && line.Choice() {
			if len(pending) == 0 {
				break
			}
			r.selections = append(r.selections, pending[0])
			r.cursor.SelectBranch(pending[0])
			pending = pending[1:]
		}
		if err := r.step(); err != nil {
			return fmt.Errorf("restore scenario %d: %w", state.ScenarioID, err)
		}
	}

	if r.cursor == nil {
		r.logger.Warn("restored session ran past the end of its scenario",
			slog.Int("scenario_id", state.ScenarioID))
		return nil
	}
	if line, ok := r.cursor.Current(); ok && state.LastLineGUID != "" && line.GUID != state.LastLineGUID {
		r.logger.Warn("restored position differs from event log",
			slog.Int("scenario_id", state.ScenarioID),
			slog.String("want", state.LastLineGUID),
			slog.String("got", line.GUID))
	}
	return nil
}

// EmitStartupRestore emits the system.startup_restore event.
func EmitStartupRestore(restored int, state *RestoredState) {
	fields := map[string]interface{}{
		"restored": restored,
	}
	if state != nil && state.SessionActive {
		fields["scenario_id"] = state.ScenarioID
		fields["session_id"] = state.SessionID
		fields["lines_shown"] = state.LinesShown
	}
	events.Emit("info", "system.startup_restore", "", fields)
}
