// Package scenario holds compiled dialogue: lines grouped by scenario ID,
// the store that resolves them and the cursors that play them back.
package scenario

import (
	"encoding/json"
	"fmt"
)

// LineKind discriminates line payloads.
type LineKind string

const (
	KindText      LineKind = "text"
	KindSelect    LineKind = "select"
	KindImage     LineKind = "image"
	KindTransform LineKind = "transform"
	KindDestroy   LineKind = "destroy"
	KindEvent     LineKind = "event"
)

// Text is either inline text or a translation key.
type Text struct {
	Inline string `json:"inline,omitempty"`
	Key    string `json:"key,omitempty"`
}

func InlineText(s string) Text { return Text{Inline: s} }
func KeyText(k string) Text { return Text{Key: k} }

// IsKey reports whether t must be resolved through a string table.
func (t Text) IsKey() bool { return t.Key != "" }

// Lookup resolves translation keys.
type Lookup interface {
	Lookup(key string) (string, bool)
}

// Resolve returns the displayable string. Keys with no entry resolve to
// the key itself so missing translations stay visible.
func (t Text) Resolve(l Lookup) string {
	if !t.IsKey() {
		return t.Inline
	}
	if l != nil {
		if s, ok := l.Lookup(t.Key); ok {
			return s
		}
	}
	return t.Key
}

func (t Text) String() string {
	if t.IsKey() {
		return "@" + t.Key
	}
	return t.Inline
}

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

// EventKind enumerates game events a line can fire.
type EventKind string

const (
	EventNone     EventKind = "none"
	EventTeleport EventKind = "teleport"
)

// ParseEventKind maps a name to an EventKind. Unknown names map to EventNone.
func ParseEventKind(s string) (EventKind, bool) {
	switch EventKind(s) {
	case EventNone, EventTeleport:
		return EventKind(s), true
	case "":
		return EventNone, true
	}
	return EventNone, false
}

// Payload is the variant part of a Line. The set of implementations is closed.
type Payload interface {
	Kind() LineKind
	payload()
}

type TextPayload struct {
	Speaker  Text `json:"speaker"`
	Dialogue Text `json:"dialogue"`
}

type SelectPayload struct {
	Options []Text `json:"options"`
}

type ImagePayload struct {
	Sprite string `json:"sprite"`
	Color  Color  `json:"color"`
	Pos    Vec2   `json:"pos"`
}

// TransformPayload restyles the sprite shown by the Target line.
type TransformPayload struct {
	Target string `json:"target"`
	Color  Color  `json:"color"`
	Pos    Vec2   `json:"pos"`
}

// DestroyPayload removes the object created by the Target line.
type DestroyPayload struct {
	Target string `json:"target"`
}

type EventPayload struct {
	Event  EventKind      `json:"event"`
	Params map[string]any `json:"params,omitempty"`
}

func (TextPayload) Kind() LineKind { return KindText }
func (SelectPayload) Kind() LineKind { return KindSelect }
func (ImagePayload) Kind() LineKind { return KindImage }
func (TransformPayload) Kind() LineKind { return KindTransform }
func (DestroyPayload) Kind() LineKind { return KindDestroy }
func (EventPayload) Kind() LineKind { return KindEvent }

func (TextPayload) payload() {}
func (SelectPayload) payload() {}
func (ImagePayload) payload() {}
func (TransformPayload) payload() {}
func (DestroyPayload) payload() {}
func (EventPayload) payload() {}

// Line is one compiled dialogue step. Next lists successor GUIDs in output
// port order; a select line has one entry per option.
type Line struct {
	GUID    string
	Next    []string
	Payload Payload
}

func (l *Line) Kind() LineKind {
	if l.Payload == nil {
		return ""
	}
	return l.Payload.Kind()
}

// Renderable reports whether the line shows something to the player.
func (l *Line) Renderable() bool {
	switch l.Payload.(type) {
	case TextPayload, SelectPayload, ImagePayload:
		return true
	}
	return false
}

// Choice reports whether the player must pick a branch.
func (l *Line) Choice() bool {
	_, ok := l.Payload.(SelectPayload)
	return ok
}

// MutatesTarget reports whether the line acts on an earlier line's object.
func (l *Line) MutatesTarget() bool {
	switch l.Payload.(type) {
	case TransformPayload, DestroyPayload:
		return true
	}
	return false
}

func (l *Line) EmitsEvent() bool {
	_, ok := l.Payload.(EventPayload)
	return ok
}

// Target returns the GUID a transform or destroy line acts on.
func (l *Line) Target() string {
	switch p := l.Payload.(type) {
	case TransformPayload:
		return p.Target
	case DestroyPayload:
		return p.Target
	}
	return ""
}

// Clone returns a copy that shares no slices with l.
func (l Line) Clone() Line {
	l.Next = append([]string(nil), l.Next...)
	if sp, ok := l.Payload.(SelectPayload); ok {
		sp.Options = append([]Text(nil), sp.Options...)
		l.Payload = sp
	}
	return l
}

type lineJSON struct {
	GUID    string          `json:"guid"`
	Kind    LineKind        `json:"kind"`
	Next    []string        `json:"next"`
	Payload json.RawMessage `json:"payload"`
}

func (l Line) MarshalJSON() ([]byte, error) {
	if l.Payload == nil {
		return nil, fmt.Errorf("line %s has no payload", l.GUID)
	}
	raw, err := json.Marshal(l.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", l.Payload.Kind(), err)
	}
	next := l.Next
	if next == nil {
		next = []string{}
	}
	return json.Marshal(lineJSON{GUID: l.GUID, Kind: l.Payload.Kind(), Next: next, Payload: raw})
}

func (l *Line) UnmarshalJSON(data []byte) error {
	var lj lineJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return err
	}
	p, err := decodePayload(lj.Kind, lj.Payload)
	if err != nil {
		return fmt.Errorf("line %s: %w", lj.GUID, err)
	}
	l.GUID = lj.GUID
	l.Next = lj.Next
	l.Payload = p
	return nil
}

func decodePayload(kind LineKind, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case KindText:
		var p TextPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindSelect:
		var p SelectPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindImage:
		var p ImagePayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindTransform:
		var p TransformPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindDestroy:
		var p DestroyPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindEvent:
		var p EventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if _, ok := ParseEventKind(string(p.Event)); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, p.Event)
		}
		if p.Event == "" {
			p.Event = EventNone
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLineKind, kind)
	}
}
