package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
)

// PanicState is the panic trigger state.
type PanicState int

const (
	// PanicIdle waits for a press.
	PanicIdle PanicState = iota
	// PanicHolding counts down the confirmation delay.
	PanicHolding
	// PanicFired has an alert in flight.
	PanicFired
)

// String implements fmt.Stringer.
func (s PanicState) String() string {
	switch s {
	case PanicIdle:
		return "idle"
	case PanicHolding:
		return "holding"
	case PanicFired:
		return "fired"
	default:
		return "unknown"
	}
}

// firer dispatches trigger events. begin is called under the trigger's lock
// when it commits to firing, so the alert counts as in flight before the lock
// is dropped; fire then blocks until the alert is resolved.
type firer interface {
	begin()
	fire(ctx context.Context, event alert.TriggerEvent)
}

// holdSession is one in-progress press.
type holdSession struct {
	// timer fires the alert once the confirmation delay elapses.
	timer *time.Timer
	// startedAt is when the button was pressed.
	startedAt time.Time
}

// PanicTrigger is the press-and-hold panic button.
type PanicTrigger struct {
	// delay is how long the button must be held.
	delay time.Duration
	// alerts dispatches the alert.
	alerts firer

	// mu guards state and hold.
	mu sync.Mutex
	// state is the current state.
	state PanicState
	// hold is the active session while Holding.
	hold *holdSession
}

// newPanicTrigger creates an idle panic trigger.
func newPanicTrigger(delay time.Duration, alerts firer) *PanicTrigger {
	return &PanicTrigger{
		delay:  delay,
		alerts: alerts,
	}
}

// Press starts a hold session. It returns false when the trigger is not Idle:
// a second press while Holding, or a press while the previous alert is still
// in flight, does not start another session.
func (p *PanicTrigger) Press(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != PanicIdle {
		logger.DebugKV(ctx, "Panic press ignored", "state", p.state.String())
		return false
	}

	session := &holdSession{startedAt: time.Now()}
	session.timer = time.AfterFunc(p.delay, func() {
		p.expire(ctx, session)
	})

	p.hold = session
	p.state = PanicHolding

	logger.DebugKV(ctx, "Panic hold started", "delay", p.delay.String())

	return true
}

// Release ends the hold. Released before the delay elapses, the pending fire
// is cancelled and true is returned. In any other state Release does nothing.
func (p *PanicTrigger) Release() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cancelLocked()
}

// State returns the current state.
func (p *PanicTrigger) State() PanicState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// close cancels a pending hold. An alert already in flight completes.
func (p *PanicTrigger) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
}

// cancelLocked drops the active hold session. Must be called with mu held.
func (p *PanicTrigger) cancelLocked() bool {
	if p.state != PanicHolding || p.hold == nil {
		return false
	}

	// The session pointer check in expire makes cancellation deterministic
	// even when the timer has already started running.
	p.hold.timer.Stop()
	p.hold = nil
	p.state = PanicIdle

	return true
}

// expire runs when the confirmation delay elapses for session.
func (p *PanicTrigger) expire(ctx context.Context, session *holdSession) {
	p.mu.Lock()

	if p.hold != session {
		// Released or torn down in the meantime.
		p.mu.Unlock()
		return
	}

	p.hold = nil
	p.state = PanicFired
	p.alerts.begin()
	p.mu.Unlock()

	logger.InfoKV(ctx, "Panic button confirmed", "held_for", time.Since(session.startedAt).String())

	p.alerts.fire(ctx, alert.TriggerEvent{
		Kind: alert.KindPanic,
		At:   time.Now(),
	})

	// Rearm regardless of the dispatch outcome.
	p.mu.Lock()
	p.state = PanicIdle
	p.mu.Unlock()
}
