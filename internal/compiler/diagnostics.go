package compiler

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientDialogue/internal/graph"
)

var (
	ErrNoTags              = errors.New("graph has no tag nodes")
	ErrDuplicateScenarioID = errors.New("duplicate scenario id")
	ErrInvalidScenarioID   = errors.New("invalid scenario id")
)

// IDError reports a tag whose scenario ID is outside the accepted range.
type IDError struct {
	TagGUID    string
	ScenarioID int
}

func (e *IDError) Error() string {
	return fmt.Sprintf("tag %s: scenario id %d outside %d..%d",
		e.TagGUID, e.ScenarioID, graph.MinScenarioID, graph.MaxScenarioID)
}

func (e *IDError) Is(target error) bool { return target == ErrInvalidScenarioID }

// Code identifies a kind of compile diagnostic.
type Code string

const (
	CodeUnconnectedPort Code = "unconnected_port"
	CodeUnknownKind     Code = "unknown_kind"
	CodeCycle           Code = "cycle"
	CodeOptionMismatch  Code = "option_mismatch"
	CodeTooManyOptions  Code = "too_many_options"
	CodeMissingNode     Code = "missing_node"
	CodeMissingData     Code = "missing_data"
	CodePortOutOfRange  Code = "port_out_of_range"
	CodeUnknownEvent    Code = "unknown_event"
)

// Diagnostic is a non-fatal problem found while compiling. The graph still
// compiles; the affected node or edge is skipped or linked as described.
type Diagnostic struct {
	Code       Code
	ScenarioID int
	Node       string
	Port       int
	Message    string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] scenario %d node %s: %s", d.Code, d.ScenarioID, d.Node, d.Message)
}

type Diagnostics []Diagnostic

// Count returns how many diagnostics carry code.
func (ds Diagnostics) Count(code Code) int {
	n := 0
	for _, d := range ds {
		if d.Code == code {
			n++
		}
	}
	return n
}
