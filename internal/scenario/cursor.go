package scenario

// CursorState is the position of a cursor in its sequence.
type CursorState int

const (
	NotStarted CursorState = iota
	Reading
	Exhausted
)

func (s CursorState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Reading:
		return "reading"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Cursor walks one scenario forward from its entry line. The first Advance
// yields the entry line; each later Advance follows the pending branch.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	data    *resolved
	state   CursorState
	current int
	pending int
	valid   bool
}

func newCursor(data *resolved) *Cursor {
	c := &Cursor{data: data, current: -1, valid: true}
	if data == nil || !data.entry.OK() {
		c.state = Exhausted
		c.valid = false
	}
	return c
}

// Advance moves to the next line and returns it. It returns false once the
// sequence is exhausted, including when the pending branch index is out of
// range for the current line.
func (c *Cursor) Advance() (*Line, bool) {
	switch c.state {
	case NotStarted:
		c.state = Reading
		c.current = c.data.entry.Index
		c.pending = 0
		return &c.data.lines[c.current], true
	case Reading:
		succ := c.data.next[c.current]
		i := c.pending
		if i < 0 || i >= len(succ) {
			c.state = Exhausted
			c.current = -1
			return nil, false
		}
		c.current = succ[i]
		c.pending = 0
		return &c.data.lines[c.current], true
	default:
		return nil, false
	}
}

// SelectBranch sets the branch the next Advance follows. The index is not
// checked here. It has no effect on an exhausted cursor.
func (c *Cursor) SelectBranch(i int) {
	if c.state == Exhausted {
		return
	}
	c.pending = i
}

// Invalidate ends iteration. An invalidated cursor cannot be resumed.
func (c *Cursor) Invalidate() {
	c.state = Exhausted
	c.current = -1
	c.valid = false
}

// Valid is false after beginning a scenario with no entry line or after
// Invalidate. A cursor that ran off the end of its sequence stays valid.
func (c *Cursor) Valid() bool { return c.valid }

func (c *Cursor) State() CursorState { return c.state }

func (c *Cursor) Pending() int { return c.pending }

// Current returns the line the cursor is on. The returned line is shared
// with every other cursor over the same scenario and must not be modified.
func (c *Cursor) Current() (*Line, bool) {
	if c.state != Reading {
		return nil, false
	}
	return &c.data.lines[c.current], true
}

// Branches returns how many successors the current line resolved to.
func (c *Cursor) Branches() int {
	if c.state != Reading {
		return 0
	}
	return len(c.data.next[c.current])
}
