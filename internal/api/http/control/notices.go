package control

import (
	"context"
	"sync"

	"github.com/oshokin/sos-button/internal/trigger"
)

// DefaultNoticeCapacity bounds the notice log.
const DefaultNoticeCapacity = 32

// NoticeLog keeps the most recent notices in a ring.
type NoticeLog struct {
	mu sync.Mutex
	// ring holds up to len(ring) notices; next is the slot written next.
	ring []trigger.Notice
	next int
	full bool
}

// NewNoticeLog creates a log holding at most capacity notices.
func NewNoticeLog(capacity int) *NoticeLog {
	if capacity <= 0 {
		capacity = DefaultNoticeCapacity
	}

	return &NoticeLog{ring: make([]trigger.Notice, capacity)}
}

// Notify implements trigger.Notifier.
func (l *NoticeLog) Notify(_ context.Context, notice trigger.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring[l.next] = notice
	l.next = (l.next + 1) % len(l.ring)

	if l.next == 0 {
		l.full = true
	}
}

// Recent returns the stored notices, oldest first.
func (l *NoticeLog) Recent() []trigger.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		return append([]trigger.Notice(nil), l.ring[:l.next]...)
	}

	notices := make([]trigger.Notice, 0, len(l.ring))
	notices = append(notices, l.ring[l.next:]...)

	return append(notices, l.ring[:l.next]...)
}
