package scenario

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/AaronLay10/SentientDialogue/internal/log"
)

// Tables names the translation tables key-form text refers to.
type Tables struct {
	Name      string `json:"name,omitempty" yaml:"name"`
	Dialogue  string `json:"dialogue,omitempty" yaml:"dialogue"`
	Selection string `json:"selection,omitempty" yaml:"selection"`
}

// LabelName is the packaged label of a scenario: prefix_id, or just id when
// prefix is empty.
func LabelName(prefix string, id int) string {
	if prefix == "" {
		return fmt.Sprint(id)
	}
	return fmt.Sprintf("%s_%d", prefix, id)
}

type collection struct {
	lines []Line
	pos   map[string]int
}

// resolved is the frozen, index-linked form of one scenario.
type resolved struct {
	id    int
	lines []Line
	next  [][]int
	entry EntryResult
}

// DanglingRef is a successor GUID that names no line in its scenario.
type DanglingRef struct {
	ScenarioID int
	From       string
	To         string
}

// FinalizeReport summarizes a Finalize pass.
type FinalizeReport struct {
	Scenarios int
	Lines     int
	Dangling  []DanglingRef
	Entries   map[int]EntryResult
}

// OK reports whether every non-empty scenario has a unique entry and no
// references were dropped.
func (r *FinalizeReport) OK() bool {
	if len(r.Dangling) > 0 {
		return false
	}
	for _, e := range r.Entries {
		if e.Status == EntryAmbiguous {
			return false
		}
	}
	return true
}

// Store owns compiled lines keyed by scenario ID. Lines are added while
// building; Finalize freezes them into resolved scenes. A finalized Store
// is safe for concurrent GetScene calls.
type Store struct {
	mu        sync.RWMutex
	tables    Tables
	byID      map[int]*collection
	resolved  map[int]*resolved
	report    *FinalizeReport
	finalized bool
	logger    *slog.Logger
}

func NewStore() *Store {
	return &Store{
		byID:   make(map[int]*collection),
		logger: log.WithComponent("scenario"),
	}
}

// SetTables records the translation table names stored with the asset.
func (s *Store) SetTables(t Tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = t
}

func (s *Store) Tables() Tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables
}

// AddScenario registers id with no lines if it is not present yet.
func (s *Store) AddScenario(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectionLocked(id)
	s.finalized = false
}

// AddLine appends line to scenario id, creating the scenario if absent.
// A line whose GUID is already present replaces the earlier one.
func (s *Store) AddLine(id int, line Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collectionLocked(id)
	line = line.Clone()
	if i, ok := c.pos[line.GUID]; ok {
		c.lines[i] = line
	} else {
		c.pos[line.GUID] = len(c.lines)
		c.lines = append(c.lines, line)
	}
	s.finalized = false
}

func (s *Store) collectionLocked(id int) *collection {
	c, ok := s.byID[id]
	if !ok {
		c = &collection{pos: make(map[string]int)}
		s.byID[id] = c
	}
	return c
}

// Clear discards all scenarios and resolved data.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[int]*collection)
	s.resolved = nil
	s.report = nil
	s.finalized = false
	s.tables = Tables{}
}

func (s *Store) Has(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// IDs returns the registered scenario IDs in ascending order.
func (s *Store) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.byID))
}

// Lines returns a copy of the unresolved lines of id in insertion order.
func (s *Store) Lines(id int) ([]Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrScenarioNotFound, id)
	}
	out := make([]Line, len(c.lines))
	for i := range c.lines {
		out[i] = c.lines[i].Clone()
	}
	return out, nil
}

func (s *Store) Finalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

// Finalize resolves successor GUIDs into sibling indices and computes the
// entry line of every scenario. GUIDs that name no sibling are dropped from
// the branch list and reported. Calling Finalize again without intervening
// changes returns the previous report.
func (s *Store) Finalize() *FinalizeReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized && s.report != nil {
		return s.report
	}

	report := &FinalizeReport{Entries: make(map[int]EntryResult, len(s.byID))}
	res := make(map[int]*resolved, len(s.byID))
	for _, id := range slices.Sorted(maps.Keys(s.byID)) {
		c := s.byID[id]
		r := &resolved{id: id, lines: make([]Line, len(c.lines)), next: make([][]int, len(c.lines))}
		for i := range c.lines {
			r.lines[i] = c.lines[i].Clone()
		}
		for i := range r.lines {
			from := r.lines[i].GUID
			for _, to := range r.lines[i].Next {
				j, ok := c.pos[to]
				if !ok {
					report.Dangling = append(report.Dangling, DanglingRef{ScenarioID: id, From: from, To: to})
					s.logger.Warn("dropping dangling reference",
						slog.Int("scenario_id", id),
						slog.String("from", from),
						slog.String("to", to))
					continue
				}
				r.next[i] = append(r.next[i], j)
			}
			kept := make([]string, len(r.next[i]))
			for k, j := range r.next[i] {
				kept[k] = c.lines[j].GUID
			}
			r.lines[i].Next = kept
		}
		r.entry = resolveEntry(r.lines, r.next)
		if len(r.lines) > 0 && !r.entry.OK() {
			s.logger.Warn("scenario has no unique entry line",
				slog.Int("scenario_id", id),
				slog.String("entry", r.entry.String()))
		}
		report.Entries[id] = r.entry
		report.Lines += len(r.lines)
		res[id] = r
	}
	report.Scenarios = len(res)

	s.resolved = res
	s.report = report
	s.finalized = true
	s.logger.Debug("store finalized",
		slog.Int("scenarios", report.Scenarios),
		slog.Int("lines", report.Lines),
		slog.Int("dangling", len(report.Dangling)))
	return report
}

// GetScene returns a new playback handle over scenario id. Each handle has
// its own cursor stack; the resolved lines are shared and read-only.
func (s *Store) GetScene(id int) (*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrScenarioNotFound, id)
	}
	if !s.finalized {
		return nil, ErrNotFinalized
	}
	return &Scene{data: s.resolved[id]}, nil
}
