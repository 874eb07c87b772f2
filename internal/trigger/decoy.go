package trigger

import (
	"sync"
	"time"
)

// Handle identifies one decoy call overlay.
type Handle uint64

// DecoyState is what the presentation layer renders.
type DecoyState struct {
	// Active is true while the fake call is on screen.
	Active bool `json:"active"`
	// Handle identifies the active overlay.
	Handle Handle `json:"handle,omitempty"`
	// Caller is the name shown on the call screen.
	Caller string `json:"caller,omitempty"`
	// ShownAt is when the overlay appeared.
	ShownAt time.Time `json:"shown_at,omitzero"`
	// ExpiresAt is when the overlay dismisses itself.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// overlay is the active fake call.
type overlay struct {
	handle  Handle
	timer   *time.Timer
	shownAt time.Time
}

// DecoyOverlay is the fake incoming call. It is local only: no network, no location.
type DecoyOverlay struct {
	// duration is how long the overlay stays up unless dismissed.
	duration time.Duration
	// caller is the name shown.
	caller string
	// changed is called outside the lock after every show and dismissal.
	changed func(DecoyState)

	// mu guards active and last.
	mu sync.Mutex
	// active is the overlay on screen, nil when none.
	active *overlay
	// last is the most recently issued handle.
	last Handle
}

// newDecoyOverlay creates a hidden overlay.
func newDecoyOverlay(duration time.Duration, caller string, changed func(DecoyState)) *DecoyOverlay {
	if changed == nil {
		changed = func(DecoyState) {}
	}

	return &DecoyOverlay{
		duration: duration,
		caller:   caller,
		changed:  changed,
	}
}

// Show displays the fake call. It returns false, and changes nothing, when an
// overlay is already active.
func (d *DecoyOverlay) Show() (Handle, bool) {
	d.mu.Lock()

	if d.active != nil {
		d.mu.Unlock()
		return 0, false
	}

	d.last++

	o := &overlay{
		handle:  d.last,
		shownAt: time.Now(),
	}
	o.timer = time.AfterFunc(d.duration, func() {
		d.Dismiss(o.handle)
	})

	d.active = o
	state := d.stateLocked()
	d.mu.Unlock()

	d.changed(state)

	return o.handle, true
}

// Dismiss removes the overlay identified by h. Stale handles are ignored.
func (d *DecoyOverlay) Dismiss(h Handle) bool {
	d.mu.Lock()

	if d.active == nil || d.active.handle != h {
		d.mu.Unlock()
		return false
	}

	d.active.timer.Stop()
	d.active = nil
	state := d.stateLocked()
	d.mu.Unlock()

	d.changed(state)

	return true
}

// DismissActive removes whichever overlay is on screen.
func (d *DecoyOverlay) DismissActive() bool {
	d.mu.Lock()

	if d.active == nil {
		d.mu.Unlock()
		return false
	}

	h := d.active.handle
	d.mu.Unlock()

	return d.Dismiss(h)
}

// State returns the render state.
func (d *DecoyOverlay) State() DecoyState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.stateLocked()
}

// close tears the overlay down without notifying.
func (d *DecoyOverlay) close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active == nil {
		return
	}

	d.active.timer.Stop()
	d.active = nil
}

// stateLocked builds the render state. Must be called with mu held.
func (d *DecoyOverlay) stateLocked() DecoyState {
	if d.active == nil {
		return DecoyState{}
	}

	return DecoyState{
		Active:    true,
		Handle:    d.active.handle,
		Caller:    d.caller,
		ShownAt:   d.active.shownAt,
		ExpiresAt: d.active.shownAt.Add(d.duration),
	}
}
