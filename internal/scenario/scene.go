package scenario

import "iter"

// Scene is a playback handle over one finalized scenario. It keeps a stack
// of cursors so a scene can be restarted while an earlier pass is still
// referenced; scene-level calls act on the topmost valid cursor.
type Scene struct {
	data  *resolved
	stack []*Cursor
}

func (s *Scene) ID() int { return s.data.id }

func (s *Scene) Entry() EntryResult { return s.data.entry }

// Playable reports whether the scenario has a unique entry line.
func (s *Scene) Playable() bool { return s.data.entry.OK() }

func (s *Scene) Len() int { return len(s.data.lines) }

// Line looks up a line of this scenario by GUID.
func (s *Scene) Line(guid string) (*Line, bool) {
	for i := range s.data.lines {
		if s.data.lines[i].GUID == guid {
			return &s.data.lines[i], true
		}
	}
	return nil, false
}

// Begin pushes a fresh cursor positioned before the entry line.
func (s *Scene) Begin() *Cursor {
	c := newCursor(s.data)
	s.stack = append(s.stack, c)
	return c
}

// Depth is the number of cursors on the stack, valid or not.
func (s *Scene) Depth() int { return len(s.stack) }

// Top pops invalid cursors and returns the topmost valid one.
func (s *Scene) Top() (*Cursor, bool) {
	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		if top.Valid() {
			return top, true
		}
		s.stack[len(s.stack)-1] = nil
		s.stack = s.stack[:len(s.stack)-1]
	}
	return nil, false
}

// SelectBranch sets the pending branch of the topmost valid cursor.
func (s *Scene) SelectBranch(i int) {
	if c, ok := s.Top(); ok {
		c.SelectBranch(i)
	}
}

// Advance advances the topmost valid cursor.
func (s *Scene) Advance() (*Line, bool) {
	c, ok := s.Top()
	if !ok {
		return nil, false
	}
	return c.Advance()
}

// Current returns the line under the topmost valid cursor.
func (s *Scene) Current() (*Line, bool) {
	c, ok := s.Top()
	if !ok {
		return nil, false
	}
	return c.Current()
}

// Invalidate invalidates the topmost valid cursor.
func (s *Scene) Invalidate() {
	if c, ok := s.Top(); ok {
		c.Invalidate()
	}
}

// Lines begins a new cursor and yields each line it reaches. Calling
// SelectBranch on the scene between iterations picks the branch taken.
// Breaking out of the loop invalidates the cursor.
func (s *Scene) Lines() iter.Seq[*Line] {
	return func(yield func(*Line) bool) {
		c := s.Begin()
		for {
			l, ok := c.Advance()
			if !ok {
				return
			}
			if !yield(l) {
				c.Invalidate()
				return
			}
		}
	}
}
