package graph

import "github.com/google/uuid"

// Builder assembles a Graph in code, assigning a fresh GUID to every node.
// Each method returns the GUID of the node it added.
type Builder struct {
	g Graph
}

// NewBuilder returns an empty builder for the current graph version.
func NewBuilder() *Builder {
	return &Builder{g: Graph{Version: CurrentVersion, View: View{Scale: Vec2{X: 1, Y: 1}}}}
}

// Add appends n, generating a GUID if it has none.
func (b *Builder) Add(n Node) string {
	if n.GUID == "" {
		n.GUID = uuid.NewString()
	}
	b.g.Nodes = append(b.g.Nodes, n)
	return n.GUID
}

func (b *Builder) Tag(scenarioID int) string {
	return b.Add(Node{Kind: KindTag, Name: "Line Tag", Tag: &TagData{ScenarioID: scenarioID}})
}

func (b *Builder) Text(speaker, dialogue string) string {
	return b.Add(Node{Kind: KindText, Text: &TextData{Speaker: speaker, Dialogue: dialogue}})
}

func (b *Builder) Select(options ...string) string {
	return b.Add(Node{Kind: KindSelect, Select: &SelectData{Options: append([]string(nil), options...)}})
}

func (b *Builder) Image(sprite string, color Color, pos Vec2) string {
	return b.Add(Node{Kind: KindImage, Image: &ImageData{Sprite: sprite, Color: color, Pos: pos}})
}

func (b *Builder) Transform(target string, color Color, pos Vec2) string {
	return b.Add(Node{Kind: KindTransform, Transform: &TransformData{Target: target, Color: color, Pos: pos}})
}

func (b *Builder) Destroy(target string) string {
	return b.Add(Node{Kind: KindDestroy, Destroy: &DestroyData{Target: target}})
}

func (b *Builder) Event(kind string, params map[string]any) string {
	return b.Add(Node{Kind: KindEvent, Event: &EventData{Kind: kind, Params: params}})
}

// Connect links output port `port` of from to the single input port of to.
func (b *Builder) Connect(from string, port int, to string) *Builder {
	b.g.Edges = append(b.g.Edges, Edge{OutputNode: from, OutputPort: port, InputNode: to})
	return b
}

// Chain connects port 0 of each node to the next one.
func (b *Builder) Chain(guids ...string) *Builder {
	for i := 0; i+1 < len(guids); i++ {
		b.Connect(guids[i], 0, guids[i+1])
	}
	return b
}

// Graph returns a copy of the graph built so far.
func (b *Builder) Graph() *Graph {
	g := b.g
	g.Nodes = append([]Node(nil), b.g.Nodes...)
	g.Edges = append([]Edge(nil), b.g.Edges...)
	return &g
}
