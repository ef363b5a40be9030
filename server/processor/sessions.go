package processor

import (
	"sync"

	"formcoach/server/models"
)

// SessionStore keeps the most recent analysis sessions in memory. When
// the capacity is reached the oldest session is dropped.
type SessionStore struct {
	mutex    sync.RWMutex
	capacity int
	order    []string
	byID     map[string]*models.Session
}

func NewSessionStore(capacity int) *SessionStore {
	return &SessionStore{
		capacity: capacity,
		byID:     make(map[string]*models.Session),
	}
}

func (s *SessionStore) Add(session *models.Session) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.capacity > 0 && len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, oldest)
	}

	s.order = append(s.order, session.ID)
	s.byID[session.ID] = session
}

func (s *SessionStore) Get(id string) (*models.Session, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, exists := s.byID[id]
	return session, exists
}

// Recent returns sessions newest first. A limit of zero or less returns
// everything currently stored.
func (s *SessionStore) Recent(limit int) []*models.Session {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	sessions := make([]*models.Session, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(sessions) < limit; i-- {
		sessions = append(sessions, s.byID[s.order[i]])
	}
	return sessions
}

func (s *SessionStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.order)
}
