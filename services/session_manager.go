package services

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionManager hands out session handles. Sessions share nothing but the
// completion client and archiver.
type SessionManager struct {
	client       CompletionClient
	archiver     Archiver
	defaultModel string
	logger       *zap.Logger

	mu       sync.RWMutex
	sessions map[SessionID]*Session
}

func NewSessionManager(client CompletionClient, defaultModel string, archiver Archiver, logger *zap.Logger) *SessionManager {
	if archiver == nil {
		archiver = NopArchiver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		client:       client,
		archiver:     archiver,
		defaultModel: defaultModel,
		logger:       logger,
		sessions:     make(map[SessionID]*Session),
	}
}

func (m *SessionManager) Create() *Session {
	id := SessionID(uuid.New().String())
	sess := NewSession(id, m.defaultModel, m.client,
		WithArchiver(m.archiver),
		WithLogger(m.logger),
	)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.logger.Info("session created", zap.String("session_id", string(id)), zap.String("model", m.defaultModel))
	return sess
}

func (m *SessionManager) Get(id SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// End ends the session and forgets it.
func (m *SessionManager) End(id SessionID) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return sess.End()
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
