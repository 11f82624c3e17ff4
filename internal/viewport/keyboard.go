// Package viewport derives on-screen keyboard state from visual viewport
// resize events.
package viewport

// DefaultThreshold is the minimum viewport shrink treated as a keyboard.
// Smaller changes come from browser chrome or orientation jitter.
const DefaultThreshold = 80

// Pinner pins the content area to the shrunk viewport while the keyboard is
// visible so fixed controls stay on screen.
type Pinner interface {
	Pin(height float64)
	Unpin()
}

// State is the adapter output after each event.
type State struct {
	KeyboardHeight float64
	Visible        bool
}

// Adapter tracks the baseline viewport height captured at the first
// observation and classifies later heights against it.
type Adapter struct {
	threshold float64
	pinner    Pinner

	baseline    float64
	hasBaseline bool
	current     float64
	open        bool
	focused     bool
	pinned      bool
	pinnedAt    float64
}

// NewAdapter creates an adapter. threshold <= 0 uses DefaultThreshold;
// pinner may be nil.
func NewAdapter(threshold float64, pinner Pinner) *Adapter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Adapter{threshold: threshold, pinner: pinner}
}

// Observe records a viewport height. The first call sets the baseline.
func (a *Adapter) Observe(height float64) State {
	if !a.hasBaseline {
		a.baseline = height
		a.hasBaseline = true
	}
	a.current = height
	a.open = a.baseline-height > a.threshold
	return a.sync()
}

// SetFocused records whether a text input currently has focus.
func (a *Adapter) SetFocused(focused bool) State {
	a.focused = focused
	return a.sync()
}

// State returns the current keyboard state without changing it.
func (a *Adapter) State() State {
	return a.state()
}

// Baseline returns the captured baseline height and whether it is set.
func (a *Adapter) Baseline() (float64, bool) {
	return a.baseline, a.hasBaseline
}

func (a *Adapter) state() State {
	if !a.open {
		return State{}
	}
	return State{
		KeyboardHeight: a.baseline - a.current,
		Visible:        a.focused,
	}
}

// sync pins when the keyboard appears or the pinned height changes, and
// unpins when it goes away.
func (a *Adapter) sync() State {
	s := a.state()
	switch {
	case s.Visible:
		if a.pinned && a.pinnedAt == a.current {
			break
		}
		if a.pinner != nil {
			a.pinner.Pin(a.current)
		}
		a.pinned = true
		a.pinnedAt = a.current
	case a.pinned:
		if a.pinner != nil {
			a.pinner.Unpin()
		}
		a.pinned = false
	}
	return s
}
