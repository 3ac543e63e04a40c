package run

import "sync"

// ProgressBuffer is a bounded, append-safe message queue between the run
// worker and the operator-facing surface. The worker appends; the surface
// drains. No message is lost or duplicated between the two sides unless the
// bound is hit, in which case the oldest undrained messages are dropped.
type ProgressBuffer struct {
	mu      sync.Mutex
	entries []string
	max     int
}

// NewProgressBuffer returns a buffer holding at most max undrained messages.
func NewProgressBuffer(max int) *ProgressBuffer {
	if max <= 0 {
		max = 1024
	}
	return &ProgressBuffer{max: max}
}

// Append adds one message, evicting the oldest when full.
func (b *ProgressBuffer) Append(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.max {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, msg)
}

// Drain returns every pending message in append order and clears the buffer.
func (b *ProgressBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return nil
	}
	out := b.entries
	b.entries = nil
	return out
}
