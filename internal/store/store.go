package store

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/t-curity/tcurity-backend/internal/model"
	"github.com/t-curity/tcurity-backend/internal/state"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

const DefaultTTL = 600 * time.Second

// Store owns all session entities. Expiry is lazy: expired records may
// still exist physically but every read treats them as gone.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]model.Session

	lockMu sync.Mutex
	locks  map[string]*sessionLock

	ttl time.Duration
}

type Options struct {
	TTL time.Duration
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]model.Session),
		locks:    make(map[string]*sessionLock),
		ttl:      ttl,
	}
}

// sessionLock is a per-session mutex with a holder/waiter count. The
// count is only touched under lockMu.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// LockSession acquires the per-session mutex and returns its release
// function. The session id is the unit of serialization: a whole
// submission (status check, oracle call, counter update) runs under it.
// Once the last holder releases a lock whose session is gone or past
// expiry, the lock entry is dropped so the table tracks live sessions.
func (s *Store) LockSession(id string) func() {
	s.lockMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.releaseLock(id, l)
	}
}

func (s *Store) releaseLock(id string, l *sessionLock) {
	s.mu.RLock()
	sess, live := s.sessions[id]
	s.mu.RUnlock()
	stale := !live || time.Now().UnixMilli() > sess.ExpiresAt

	s.lockMu.Lock()
	l.refs--
	if l.refs == 0 && stale {
		delete(s.locks, id)
	}
	s.lockMu.Unlock()
}

func (s *Store) Create(clientID string, nowMillis int64) (model.Session, error) {
	if clientID == "" {
		return model.Session{}, errors.New("missing clientID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := model.Session{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Status:    model.StatusInit,
		CreatedAt: nowMillis,
		ExpiresAt: nowMillis + s.ttl.Milliseconds(),
		PhaseA:    model.PhaseAState{TargetPath: []model.TracePoint{}},
		PhaseB:    model.PhaseBState{CorrectAnswer: []string{}},
	}
	s.sessions[sess.ID] = sess
	return cloneSession(sess), nil
}

// Get returns the session by id, or ErrNotFound / ErrExpired.
func (s *Store) Get(id string, nowMillis int64) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	if nowMillis > sess.ExpiresAt {
		return model.Session{}, ErrExpired
	}
	return cloneSession(sess), nil
}

// TTL reports the store's fixed session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// ApplyPhaseA merges a phase A patch. The attempts counter is monotonic;
// a patch that would decrease it is rejected.
func (s *Store) ApplyPhaseA(id string, patch model.PhaseAPatch, nowMillis int64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	if nowMillis > sess.ExpiresAt {
		return model.Session{}, ErrExpired
	}

	if patch.Attempts != nil {
		if *patch.Attempts < sess.PhaseA.Attempts {
			return model.Session{}, errors.New("attempts counter cannot decrease")
		}
		sess.PhaseA.Attempts = *patch.Attempts
	}
	if patch.TargetPath != nil {
		sess.PhaseA.TargetPath = clonePoints(*patch.TargetPath)
	}

	s.sessions[id] = sess
	return cloneSession(sess), nil
}

// ApplyPhaseB merges a phase B patch. CorrectAnswer and IssuedAt replace
// together on issuance; the fail counter is monotonic.
func (s *Store) ApplyPhaseB(id string, patch model.PhaseBPatch, nowMillis int64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	if nowMillis > sess.ExpiresAt {
		return model.Session{}, ErrExpired
	}

	if (patch.CorrectAnswer == nil) != (patch.IssuedAt == nil) {
		return model.Session{}, errors.New("correct answer and issued_at must be replaced together")
	}
	if patch.FailCount != nil {
		if *patch.FailCount < sess.PhaseB.FailCount {
			return model.Session{}, errors.New("fail counter cannot decrease")
		}
		sess.PhaseB.FailCount = *patch.FailCount
	}
	if patch.CorrectAnswer != nil {
		answer := make([]string, len(*patch.CorrectAnswer))
		copy(answer, *patch.CorrectAnswer)
		sess.PhaseB.CorrectAnswer = answer
		sess.PhaseB.IssuedAt = *patch.IssuedAt
	}

	s.sessions[id] = sess
	return cloneSession(sess), nil
}

// SetStatus is the only sanctioned way to change a session's status. It
// consults the transition table and rejects anything outside it.
func (s *Store) SetStatus(id string, next model.Status, nowMillis int64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	if nowMillis > sess.ExpiresAt {
		return model.Session{}, ErrExpired
	}

	if err := state.Check(sess.Status, next); err != nil {
		return model.Session{}, err
	}

	old := sess.Status
	sess.Status = next
	s.sessions[id] = sess
	log.Printf("[STATE] %s -> %s (session_id=%s)", old, next, id)
	return cloneSession(sess), nil
}

func cloneSession(sess model.Session) model.Session {
	sess.PhaseA.TargetPath = clonePoints(sess.PhaseA.TargetPath)
	answer := make([]string, len(sess.PhaseB.CorrectAnswer))
	copy(answer, sess.PhaseB.CorrectAnswer)
	sess.PhaseB.CorrectAnswer = answer
	return sess
}

func clonePoints(points []model.TracePoint) []model.TracePoint {
	out := make([]model.TracePoint, len(points))
	copy(out, points)
	return out
}
