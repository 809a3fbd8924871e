package dispensing

import (
	"sync"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"go.uber.org/zap"
)

const defaultSessionTTL = 8 * time.Hour

// SessionManager owns one session per operator and evicts idle ones
type SessionManager struct {
	deps   Dependencies
	cfg    SessionConfig
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	startOnce sync.Once
	stopOnce  sync.Once
	running   bool
	stop      chan struct{}
	done      chan struct{}
}

// NewSessionManager creates a manager; a non-positive ttl falls back to 8h
func NewSessionManager(deps Dependencies, cfg SessionConfig, ttl time.Duration, logger *zap.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionManager{
		deps:     deps,
		cfg:      cfg,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Get returns the operator's session, creating it on first use
func (m *SessionManager) Get(op dispensing.Operator) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[op.ID]; ok {
		return s
	}
	s := NewSession(op, m.deps, m.cfg, m.logger)
	s.now = m.now
	s.lastActive = m.now()
	m.sessions[op.ID] = s
	m.logger.Debug("session created", zap.String("operator_id", op.ID))
	return s
}

// Lookup returns an existing session without creating one
func (m *SessionManager) Lookup(operatorID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[operatorID]
	return s, ok
}

// Evict drops the operator's session
func (m *SessionManager) Evict(operatorID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[operatorID]
	delete(m.sessions, operatorID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// EvictIdle drops every session idle for longer than the TTL
func (m *SessionManager) EvictIdle() int {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	idle := make([]*Session, 0)
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		m.logger.Info("idle session evicted", zap.String("operator_id", s.Operator().ID))
	}
	return len(idle)
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start runs the eviction loop until Close
func (m *SessionManager) Start(every time.Duration) {
	if every <= 0 {
		every = m.ttl / 4
	}
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.running = true
		m.mu.Unlock()
		go m.evictLoop(every)
	})
}

func (m *SessionManager) evictLoop(every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// Close stops the eviction loop and cancels loads in flight
func (m *SessionManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if running {
		<-m.done
	}

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
