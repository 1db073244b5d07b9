package graph

// Graph is the authoring document saved by the dialogue editor.
type Graph struct {
	Version int    `json:"version"`
	View    View   `json:"view"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// View is the editor viewport. The compiler ignores it.
type View struct {
	Scale    Vec2 `json:"scale"`
	Position Vec2 `json:"position"`
}

// NodeKind names the kind of an authoring node.
type NodeKind string

const (
	KindTag       NodeKind = "tag"
	KindText      NodeKind = "text"
	KindSelect    NodeKind = "select"
	KindImage     NodeKind = "image"
	KindTransform NodeKind = "transform"
	KindDestroy   NodeKind = "destroy"
	KindEvent     NodeKind = "event"
)

// Known reports whether k is a kind the editor can produce.
func (k NodeKind) Known() bool {
	switch k {
	case KindTag, KindText, KindSelect, KindImage, KindTransform, KindDestroy, KindEvent:
		return true
	}
	return false
}

// ProducesLine reports whether nodes of this kind compile into a line.
// Tags mark scenario entry points and are passed through.
func (k NodeKind) ProducesLine() bool {
	return k.Known() && k != KindTag
}

// Scenario IDs accepted on tag nodes.
const (
	MinScenarioID = 1
	MaxScenarioID = 9999999
)

// Vec2 is a 2D position.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Color is an RGBA color with components in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// White is the default sprite tint.
var White = Color{R: 1, G: 1, B: 1, A: 1}

// Node is a single authoring node. Exactly one of the data pointers matching
// Kind is expected to be set.
type Node struct {
	GUID string   `json:"guid"`
	Kind NodeKind `json:"kind"`
	Name string   `json:"name,omitempty"`
	Pos  Vec2     `json:"pos"`

	Tag       *TagData       `json:"tag,omitempty"`
	Text      *TextData      `json:"text,omitempty"`
	Select    *SelectData    `json:"select,omitempty"`
	Image     *ImageData     `json:"image,omitempty"`
	Transform *TransformData `json:"transform,omitempty"`
	Destroy   *DestroyData   `json:"destroy,omitempty"`
	Event     *EventData     `json:"event,omitempty"`
}

// TagData marks a scenario entry point.
type TagData struct {
	ScenarioID int `json:"scenario_id"`
}

// TextData holds a spoken line. Keys address translation tables; the plain
// fields hold the inline text used when tables are not in use.
type TextData struct {
	SpeakerKey  string `json:"speaker_key,omitempty"`
	Speaker     string `json:"speaker,omitempty"`
	DialogueKey string `json:"dialogue_key,omitempty"`
	Dialogue    string `json:"dialogue,omitempty"`
}

// SelectData holds player options, one output port per option.
type SelectData struct {
	OptionKeys []string `json:"option_keys,omitempty"`
	Options    []string `json:"options"`
}

// ImageData shows a sprite.
type ImageData struct {
	Sprite string `json:"sprite"`
	Color  Color  `json:"color"`
	Pos    Vec2   `json:"pos"`
}

// TransformData changes color and position of a previously shown sprite.
type TransformData struct {
	Target string `json:"target"`
	Color  Color  `json:"color"`
	Pos    Vec2   `json:"pos"`
}

// DestroyData removes a previously shown sprite.
type DestroyData struct {
	Target string `json:"target"`
}

// EventData fires a game event. Params are opaque to the compiler.
type EventData struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

// Edge connects an output port of one node to an input port of another.
type Edge struct {
	OutputNode string `json:"output_node"`
	OutputPort int    `json:"output_port"`
	InputNode  string `json:"input_node"`
	InputPort  int    `json:"input_port"`
}

// OutputPorts returns how many output ports the node exposes.
func (n *Node) OutputPorts() int {
	switch n.Kind {
	case KindSelect:
		if n.Select == nil {
			return 0
		}
		return len(n.Select.Options)
	case KindTag, KindText, KindImage, KindTransform, KindDestroy, KindEvent:
		return 1
	default:
		return 0
	}
}

// HasData reports whether the data pointer matching Kind is set.
func (n *Node) HasData() bool {
	switch n.Kind {
	case KindTag:
		return n.Tag != nil
	case KindText:
		return n.Text != nil
	case KindSelect:
		return n.Select != nil
	case KindImage:
		return n.Image != nil
	case KindTransform:
		return n.Transform != nil
	case KindDestroy:
		return n.Destroy != nil
	case KindEvent:
		return n.Event != nil
	}
	return true
}
