package filter

import "sync"

// Snapshot is an applied option set. Seq increases with every Apply so a
// consumer can tell a new application from a repeated one.
type Snapshot struct {
	Seq     uint64
	Options Options
}

// Controller holds the options being edited (draft) separately from the ones
// in effect (applied). Edits never trigger a fetch on their own; Apply does.
type Controller struct {
	mu      sync.Mutex
	draft   Options
	applied Options
	seq     uint64
	dirty   bool
}

// NewController starts with initial both drafted and applied.
func NewController(initial Options) *Controller {
	return &Controller{draft: initial.Clone(), applied: initial.Clone()}
}

// Draft returns a copy of the options being edited.
func (c *Controller) Draft() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// Applied returns the options in effect.
func (c *Controller) Applied() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Seq: c.seq, Options: c.applied.Clone()}
}

// Dirty reports whether the draft differs from the applied options.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Update edits the draft. Dirty becomes true iff the edited draft differs from
// the applied options.
func (c *Controller) Update(fn func(*Options)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	draft := c.draft.Clone()
	fn(&draft)
	c.draft = draft
	c.dirty = !c.draft.Equal(c.applied)
}

// Reset puts the defaults into the draft. Like any edit it takes effect on Apply.
func (c *Controller) Reset() {
	c.Update(func(o *Options) { *o = Defaults() })
}

// Discard drops unapplied edits.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = c.applied.Clone()
	c.dirty = false
}

// Apply makes the draft the applied options. It returns the new snapshot and
// true once per dirty state; when nothing changed it returns the current
// snapshot and false, and the caller must not refetch.
func (c *Controller) Apply() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return Snapshot{Seq: c.seq, Options: c.applied.Clone()}, false
	}
	c.applied = c.draft.Clone()
	c.dirty = false
	c.seq++
	return Snapshot{Seq: c.seq, Options: c.applied.Clone()}, true
}
