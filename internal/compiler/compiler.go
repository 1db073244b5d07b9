// Package compiler turns an authoring graph into scenario lines.
//
// Every tag node starts a depth-first walk; each line-producing node reached
// becomes one scenario.Line whose successors are the GUIDs behind its output
// ports in port order. Tag nodes reached mid-walk are transparent.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/AaronLay10/SentientDialogue/internal/graph"
	"github.com/AaronLay10/SentientDialogue/internal/log"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

// Result is the output of Compile. Store is finalized.
type Result struct {
	Store       *scenario.Store
	Report      *scenario.FinalizeReport
	Diagnostics Diagnostics
}

type visitState uint8

const (
	unvisited visitState = iota
	active
	done
)

type frame struct {
	guid string
	exit bool
}

type compilation struct {
	src    graph.Source
	opts   Options
	store  *scenario.Store
	diags  Diagnostics
	logger *slog.Logger
}

// Compile walks src from every tag and returns the resulting store.
func Compile(src graph.Source, opts Options) (*Result, error) {
	c := &compilation{
		src:    src,
		opts:   opts.withDefaults(),
		store:  scenario.NewStore(),
		logger: log.WithOperation(log.WithComponent("compiler"), "compile"),
	}

	tags := src.Tags()
	if err := checkTags(tags); err != nil {
		return nil, err
	}

	c.store.SetTables(c.opts.Tables)
	for _, tag := range tags {
		c.store.AddScenario(tag.ScenarioID)
		c.walk(tag)
	}

	report := c.store.Finalize()
	c.logger.Info("compiled",
		slog.Int("scenarios", report.Scenarios),
		slog.Int("lines", report.Lines),
		slog.Int("diagnostics", len(c.diags)))
	return &Result{Store: c.store, Report: report, Diagnostics: c.diags}, nil
}

func checkTags(tags []graph.Tag) error {
	if len(tags) == 0 {
		return ErrNoTags
	}
	var errs []error
	owner := make(map[int]string, len(tags))
	for _, t := range tags {
		if t.ScenarioID < graph.MinScenarioID || t.ScenarioID > graph.MaxScenarioID {
			errs = append(errs, &IDError{TagGUID: t.GUID, ScenarioID: t.ScenarioID})
			continue
		}
		if prev, dup := owner[t.ScenarioID]; dup {
			errs = append(errs, fmt.Errorf("%w: %d on tags %s and %s", ErrDuplicateScenarioID, t.ScenarioID, prev, t.GUID))
			continue
		}
		owner[t.ScenarioID] = t.GUID
	}
	return errors.Join(errs...)
}

func (c *compilation) diag(d Diagnostic) {
	c.diags = append(c.diags, d)
	c.logger.Debug("diagnostic",
		slog.String("code", string(d.Code)),
		slog.Int("scenario_id", d.ScenarioID),
		slog.String("node", d.Node),
		slog.String("detail", d.Message))
}

// walk emits every line reachable from tag into the tag's scenario.
func (c *compilation) walk(tag graph.Tag) {
	id := tag.ScenarioID
	state := make(map[string]visitState)

	stack := make([]frame, 0, 16)
	roots := c.portTargets(id, tag.GUID, 0)
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{guid: roots[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.exit {
			state[f.guid] = done
			continue
		}
		if state[f.guid] != unvisited {
			continue
		}
		state[f.guid] = active
		stack = append(stack, frame{guid: f.guid, exit: true})

		node, _ := c.src.Node(f.guid)
		next := c.successors(id, node)
		line, ok := c.line(id, node, next)
		if !ok {
			continue
		}
		c.store.AddLine(id, line)

		for i := len(next) - 1; i >= 0; i-- {
			switch state[next[i]] {
			case active:
				c.diag(Diagnostic{Code: CodeCycle, ScenarioID: id, Node: node.GUID,
					Message: "links back to " + next[i]})
			case unvisited:
				stack = append(stack, frame{guid: next[i]})
			}
		}
	}
}

// successors lists the line-producing nodes behind each output port of n.
func (c *compilation) successors(id int, n *graph.Node) []string {
	ports := n.OutputPorts()
	for _, e := range c.src.Outputs(n.GUID) {
		if e.OutputPort >= ports {
			c.diag(Diagnostic{Code: CodePortOutOfRange, ScenarioID: id, Node: n.GUID, Port: e.OutputPort,
				Message: fmt.Sprintf("edge from port %d but node has %d ports", e.OutputPort, ports)})
		}
	}
	var next []string
	for p := 0; p < ports; p++ {
		targets := c.portTargets(id, n.GUID, p)
		if len(targets) == 0 && n.Kind == graph.KindSelect {
			c.diag(Diagnostic{Code: CodeUnconnectedPort, ScenarioID: id, Node: n.GUID, Port: p,
				Message: fmt.Sprintf("option %d leads nowhere", p)})
		}
		next = append(next, targets...)
	}
	return next
}

// portTargets resolves the edges leaving port of guid to line-producing
// nodes, looking through tag nodes and through nodes that produce no line.
func (c *compilation) portTargets(id int, guid string, port int) []string {
	var out []string
	seen := map[string]bool{guid: true}

	var follow func(from string, port int)
	follow = func(from string, port int) {
		for _, e := range c.src.Outputs(from) {
			if port >= 0 && e.OutputPort != port {
				continue
			}
			to, ok := c.src.Node(e.InputNode)
			if !ok {
				c.diag(Diagnostic{Code: CodeMissingNode, ScenarioID: id, Node: from, Port: e.OutputPort,
					Message: "edge to missing node " + e.InputNode})
				continue
			}
			if to.Kind.ProducesLine() && to.HasData() {
				if !slices.Contains(out, to.GUID) {
					out = append(out, to.GUID)
				}
				continue
			}
			if seen[to.GUID] {
				continue
			}
			seen[to.GUID] = true
			switch {
			case to.Kind == graph.KindTag:
				follow(to.GUID, 0)
			case !to.Kind.Known():
				c.diag(Diagnostic{Code: CodeUnknownKind, ScenarioID: id, Node: to.GUID,
					Message: fmt.Sprintf("skipping node of kind %q", to.Kind)})
				follow(to.GUID, -1)
			default:
				c.diag(Diagnostic{Code: CodeMissingData, ScenarioID: id, Node: to.GUID,
					Message: fmt.Sprintf("%s node has no data", to.Kind)})
				follow(to.GUID, -1)
			}
		}
	}
	follow(guid, port)
	return out
}

func (c *compilation) line(id int, n *graph.Node, next []string) (scenario.Line, bool) {
	l := scenario.Line{GUID: n.GUID, Next: next}
	switch n.Kind {
	case graph.KindText:
		l.Payload = c.textPayload(n)
	case graph.KindSelect:
		l.Payload = c.selectPayload(id, n, len(next))
	case graph.KindImage:
		l.Payload = scenario.ImagePayload{
			Sprite: n.Image.Sprite,
			Color:  color(n.Image.Color),
			Pos:    vec(n.Image.Pos),
		}
	case graph.KindTransform:
		l.Payload = scenario.TransformPayload{
			Target: n.Transform.Target,
			Color:  color(n.Transform.Color),
			Pos:    vec(n.Transform.Pos),
		}
	case graph.KindDestroy:
		l.Payload = scenario.DestroyPayload{Target: n.Destroy.Target}
	case graph.KindEvent:
		kind, ok := scenario.ParseEventKind(n.Event.Kind)
		if !ok {
			c.diag(Diagnostic{Code: CodeUnknownEvent, ScenarioID: id, Node: n.GUID,
				Message: fmt.Sprintf("event kind %q compiled as none", n.Event.Kind)})
		}
		l.Payload = scenario.EventPayload{Event: kind, Params: n.Event.Params}
	default:
		return l, false
	}
	return l, true
}

func (c *compilation) textPayload(n *graph.Node) scenario.TextPayload {
	t := n.Text
	if !c.opts.UseTranslationKeys {
		return scenario.TextPayload{Speaker: scenario.InlineText(t.Speaker), Dialogue: scenario.InlineText(t.Dialogue)}
	}
	speaker := scenario.InlineText(t.Speaker)
	if t.SpeakerKey != "" {
		speaker = scenario.KeyText(t.SpeakerKey)
	}
	key := t.DialogueKey
	if key == "" {
		key = c.opts.DialogueKey(n.GUID)
	}
	return scenario.TextPayload{Speaker: speaker, Dialogue: scenario.KeyText(key)}
}

func (c *compilation) selectPayload(id int, n *graph.Node, branches int) scenario.SelectPayload {
	s := n.Select
	if len(s.Options) > c.opts.MaxChoices {
		c.diag(Diagnostic{Code: CodeTooManyOptions, ScenarioID: id, Node: n.GUID,
			Message: fmt.Sprintf("%d options exceed limit %d", len(s.Options), c.opts.MaxChoices)})
	}
	if branches != len(s.Options) {
		c.diag(Diagnostic{Code: CodeOptionMismatch, ScenarioID: id, Node: n.GUID,
			Message: fmt.Sprintf("%d options but %d branches", len(s.Options), branches)})
	}
	p := scenario.SelectPayload{Options: make([]scenario.Text, len(s.Options))}
	for i, label := range s.Options {
		if !c.opts.UseTranslationKeys {
			p.Options[i] = scenario.InlineText(label)
			continue
		}
		key := ""
		if i < len(s.OptionKeys) {
			key = s.OptionKeys[i]
		}
		if key == "" {
			key = c.opts.OptionKey(n.GUID, i)
		}
		p.Options[i] = scenario.KeyText(key)
	}
	return p
}

func color(c graph.Color) scenario.Color {
	return scenario.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

func vec(v graph.Vec2) scenario.Vec2 {
	return scenario.Vec2{X: v.X, Y: v.Y}
}
