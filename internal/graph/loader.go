package graph

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// CurrentVersion is the authoring graph format written by Save.
const CurrentVersion = 1

//go:embed schema/graph.v1.json
var schemaV1 []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaV1))
})

var (
	ErrDuplicateGUID = errors.New("duplicate node guid")
	ErrMissingData   = errors.New("node data missing for kind")
	ErrUnknownNode   = errors.New("edge references unknown node")
)

// SchemaError lists JSON-Schema violations of a graph document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "graph schema validation failed: " + strings.Join(e.Problems, "; ")
}

// Load reads and validates an authoring graph from a JSON file.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return Parse(data)
}

// Parse validates data against the graph schema and decodes it.
func Parse(data []byte) (*Graph, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
	}
	if !res.Valid() {
		se := &SchemaError{}
		for _, re := range res.Errors() {
			se.Problems = append(se.Problems, re.String())
		}
		return nil, se
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
	}
	if g.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported graph version: %d", g.Version)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks structural consistency the schema cannot express.
// Nodes of unknown kinds are allowed; the compiler skips them.
func (g *Graph) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if seen[n.GUID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateGUID, n.GUID))
			continue
		}
		seen[n.GUID] = true
		if !n.HasData() {
			errs = append(errs, fmt.Errorf("%w: %s node %s", ErrMissingData, n.Kind, n.GUID))
		}
	}
	for _, e := range g.Edges {
		if !seen[e.OutputNode] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownNode, e.OutputNode))
		}
		if !seen[e.InputNode] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownNode, e.InputNode))
		}
	}
	return errors.Join(errs...)
}

// Save writes g as indented JSON.
func Save(path string, g *Graph) error {
	if g.Version == 0 {
		g.Version = CurrentVersion
	}
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return nil
}
