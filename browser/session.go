// Package browser wraps the rod-driven rendering session behind a small
// interface. The engine packages (discover, assemble, retry) only ever see
// Session, so tests drive them with fakes and never touch a real browser.
package browser

import (
	"context"
	"sync"
	"time"
)

// Session is the abstract rendering capability the engine needs: navigate,
// wait, read fully-rendered markup, click. One Session wraps one browser
// process with a single tab; it is not safe for concurrent use.
type Session interface {
	// Navigate loads the URL and lets the DOM settle.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// HTML returns the current fully-rendered markup.
	HTML(ctx context.Context) (string, error)

	// Click scrolls the first match into view and clicks it.
	Click(ctx context.Context, selector string) error

	// ClickByScript clicks via injected JS, bypassing overlay interception.
	ClickByScript(ctx context.Context, selector string) error

	// Alive probes whether the session still responds.
	Alive() bool

	// Close terminates the session and its browser process.
	Close()
}

// Factory creates a fresh Session. The orchestrator hands it to the Manager
// so the retry controller can replace a dead session mid-run.
type Factory func(ctx context.Context) (Session, error)

// Manager owns the current session and re-acquires one on detected loss.
type Manager struct {
	factory Factory

	mu      sync.Mutex
	current Session
}

// NewManager returns a Manager that lazily creates sessions via factory.
func NewManager(factory Factory) *Manager {
	return &Manager{factory: factory}
}

// Session returns the live session, creating a replacement if the current
// one is missing or no longer responds.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.current.Alive() {
			return m.current, nil
		}
		m.current.Close()
		m.current = nil
	}

	s, err := m.factory(ctx)
	if err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}

// Close releases the current session, if any. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}
