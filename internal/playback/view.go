package playback

import (
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

// LineView is a line with its text resolved for display.
type LineView struct {
	GUID     string                 `json:"guid"`
	Kind     scenario.LineKind      `json:"kind"`
	Speaker  string                 `json:"speaker,omitempty"`
	Dialogue string                 `json:"dialogue,omitempty"`
	Options  []string               `json:"options,omitempty"`
	Sprite   string                 `json:"sprite,omitempty"`
	Target   string                 `json:"target,omitempty"`
	Color    *scenario.Color        `json:"color,omitempty"`
	Pos      *scenario.Vec2         `json:"pos,omitempty"`
	Event    scenario.EventKind     `json:"event,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

// NewLineView resolves line's text through l, which may be nil.
func NewLineView(line *scenario.Line, l scenario.Lookup) LineView {
	v := LineView{GUID: line.GUID, Kind: line.Kind()}
	switch p := line.Payload.(type) {
	case scenario.TextPayload:
		v.Speaker = p.Speaker.Resolve(l)
		v.Dialogue = p.Dialogue.Resolve(l)
	case scenario.SelectPayload:
		v.Options = make([]string, len(p.Options))
		for i, o := range p.Options {
			v.Options[i] = o.Resolve(l)
		}
	case scenario.ImagePayload:
		v.Sprite = p.Sprite
		v.Color = &p.Color
		v.Pos = &p.Pos
	case scenario.TransformPayload:
		v.Target = p.Target
		v.Color = &p.Color
		v.Pos = &p.Pos
	case scenario.DestroyPayload:
		v.Target = p.Target
	case scenario.EventPayload:
		v.Event = p.Event
		v.Params = p.Params
	}
	return v
}

// Fields flattens the view into line.shown event fields.
func (v LineView) Fields(scenarioID int) map[string]interface{} {
	f := map[string]interface{}{
		"scenario_id": scenarioID,
		"line_guid":   v.GUID,
		"kind":        string(v.Kind),
	}
	switch v.Kind {
	case scenario.KindText:
		f["speaker"] = v.Speaker
		f["dialogue"] = v.Dialogue
	case scenario.KindSelect:
		f["options"] = v.Options
	case scenario.KindImage:
		f["sprite"] = v.Sprite
	case scenario.KindTransform, scenario.KindDestroy:
		f["target"] = v.Target
	case scenario.KindEvent:
		f["event"] = string(v.Event)
	}
	return f
}
