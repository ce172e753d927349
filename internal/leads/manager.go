package leads

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager keeps at most one intake loop per vendor. A new subscription for
// the same vendor replaces the old one, tearing its loop down.
type Manager struct {
	remote       Remote
	decider      Decider
	logger       *zap.SugaredLogger
	pollInterval time.Duration
	window       time.Duration
	maxBackoff   time.Duration

	mu     sync.Mutex
	active map[string]*subscription
}

type subscription struct {
	intake *Intake
	cancel context.CancelFunc
}

func NewManager(remote Remote, decider Decider, logger *zap.SugaredLogger, pollInterval, window, maxBackoff time.Duration) *Manager {
	return &Manager{
		remote:       remote,
		decider:      decider,
		logger:       logger,
		pollInterval: pollInterval,
		window:       window,
		maxBackoff:   maxBackoff,
		active:       make(map[string]*subscription),
	}
}

// Subscribe starts (or restarts) the vendor's intake loop and returns it.
// The returned stop function tears the loop down; the WebSocket handler
// calls it on disconnect.
func (m *Manager) Subscribe(parent context.Context, phone string) (*Intake, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.active[phone]; ok {
		prev.cancel()
		delete(m.active, phone)
	}

	ctx, cancel := context.WithCancel(parent)
	intake := NewIntake(m.remote, m.decider, m.logger, phone, m.pollInterval, m.window, m.maxBackoff)
	m.active[phone] = &subscription{intake: intake, cancel: cancel}
	go intake.Run(ctx)

	stop := func() {
		m.mu.Lock()
		if cur, ok := m.active[phone]; ok && cur.intake == intake {
			cur.cancel()
			delete(m.active, phone)
		} else {
			cancel()
		}
		m.mu.Unlock()
	}
	return intake, stop
}

// Lookup returns the vendor's running intake, if any.
func (m *Manager) Lookup(phone string) (*Intake, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.active[phone]
	if !ok {
		return nil, false
	}
	return sub.intake, true
}
