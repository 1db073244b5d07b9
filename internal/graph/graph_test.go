package graph

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLoadGraph(t *testing.T) {
	g, err := Load("testdata/village.v1.json")
	if err != nil {
		t.Fatalf("failed to load graph: %v", err)
	}

	if g.Version != 1 {
		t.Errorf("expected version 1, got %d", g.Version)
	}
	if len(g.Nodes) != 11 {
		t.Errorf("expected 11 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 9 {
		t.Errorf("expected 9 edges, got %d", len(g.Edges))
	}

	idx := NewIndex(g)
	tags := idx.Tags()
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if tags[0].ScenarioID != 1 || tags[1].ScenarioID != 2 {
		t.Errorf("expected tags in document order [1 2], got %+v", tags)
	}

	n, ok := idx.Node("ev1")
	if !ok {
		t.Fatal("expected event node ev1")
	}
	if n.Event.Kind != "teleport" {
		t.Errorf("expected teleport event, got %q", n.Event.Kind)
	}
	if n.Event.Params["map"] != "outskirts" {
		t.Errorf("expected map=outskirts, got %v", n.Event.Params["map"])
	}
}

func TestIndexOutputsSortedByPort(t *testing.T) {
	g, err := Load("testdata/village.v1.json")
	if err != nil {
		t.Fatalf("failed to load graph: %v", err)
	}
	outs := NewIndex(g).Outputs("o1")
	if len(outs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outs))
	}
	if outs[0].OutputPort != 0 || outs[0].InputNode != "t2" {
		t.Errorf("expected port 0 -> t2 first, got %+v", outs[0])
	}
	if outs[1].OutputPort != 1 || outs[1].InputNode != "t3" {
		t.Errorf("expected port 1 -> t3 second, got %+v", outs[1])
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing nodes", `{"version":1,"edges":[]}`},
		{"wrong version", `{"version":2,"nodes":[],"edges":[]}`},
		{"node without guid", `{"version":1,"nodes":[{"kind":"text"}],"edges":[]}`},
		{"negative port", `{"version":1,"nodes":[],"edges":[{"output_node":"a","output_port":-1,"input_node":"b","input_port":0}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Errorf("expected SchemaError, got %T: %v", err, err)
			}
		})
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"version":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestValidate(t *testing.T) {
	g := &Graph{
		Version: 1,
		Nodes: []Node{
			{GUID: "a", Kind: KindText, Text: &TextData{Dialogue: "hi"}},
			{GUID: "a", Kind: KindText, Text: &TextData{Dialogue: "again"}},
			{GUID: "b", Kind: KindSelect},
			{GUID: "c", Kind: "sound"},
		},
		Edges: []Edge{{OutputNode: "a", InputNode: "zzz"}},
	}
	err := g.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrDuplicateGUID) {
		t.Errorf("expected ErrDuplicateGUID in %v", err)
	}
	if !errors.Is(err, ErrMissingData) {
		t.Errorf("expected ErrMissingData in %v", err)
	}
	if !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode in %v", err)
	}
}

func TestUnknownKindAllowed(t *testing.T) {
	data := `{"version":1,"nodes":[
		{"guid":"t","kind":"tag","tag":{"scenario_id":3}},
		{"guid":"s","kind":"sound"}],
		"edges":[{"output_node":"t","output_port":0,"input_node":"s","input_port":0}]}`
	g, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ := NewIndex(g).Node("s")
	if n.Kind.Known() {
		t.Error("expected sound to be an unknown kind")
	}
	if n.OutputPorts() != 0 {
		t.Errorf("expected unknown kind to expose 0 ports, got %d", n.OutputPorts())
	}
}

func TestOutputPorts(t *testing.T) {
	sel := Node{Kind: KindSelect, Select: &SelectData{Options: []string{"a", "b", "c"}}}
	if got := sel.OutputPorts(); got != 3 {
		t.Errorf("expected 3 ports on select, got %d", got)
	}
	txt := Node{Kind: KindText, Text: &TextData{}}
	if got := txt.OutputPorts(); got != 1 {
		t.Errorf("expected 1 port on text, got %d", got)
	}
	if KindTag.ProducesLine() {
		t.Error("tag should not produce a line")
	}
	if !KindEvent.ProducesLine() {
		t.Error("event should produce a line")
	}
}

func TestBuilderSaveLoadRoundTrip(t *testing.T) {
	b := NewBuilder()
	tag := b.Tag(42)
	t1 := b.Text("Ann", "Hello")
	o1 := b.Select("Yes", "No")
	t2 := b.Text("Ann", "Great")
	t3 := b.Text("Ann", "Pity")
	b.Chain(tag, t1, o1)
	b.Connect(o1, 0, t2).Connect(o1, 1, t3)

	g := b.Graph()
	if tag == t1 || t1 == o1 {
		t.Fatal("expected distinct generated GUIDs")
	}

	path := filepath.Join(t.TempDir(), "graph.json")
	if err := Save(path, g); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load saved graph: %v", err)
	}
	if len(loaded.Nodes) != 5 || len(loaded.Edges) != 4 {
		t.Errorf("expected 5 nodes / 4 edges, got %d / %d", len(loaded.Nodes), len(loaded.Edges))
	}
	if loaded.View.Scale.X != 1 {
		t.Errorf("expected view scale to survive, got %+v", loaded.View.Scale)
	}
	tags := NewIndex(loaded).Tags()
	if len(tags) != 1 || tags[0].GUID != tag || tags[0].ScenarioID != 42 {
		t.Errorf("unexpected tags after round trip: %+v", tags)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
