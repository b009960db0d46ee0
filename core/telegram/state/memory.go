package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/memebot/core/logger"
	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Store keeps sessions in memory keyed by Telegram user ID. Reading an
// unknown user yields an idle session; nothing is stored before the first write.
type Store[D any] struct {
	mu       sync.RWMutex
	sessions map[int64]Session[D]
	resting  map[State]bool
	handlers map[State]tele.HandlerFunc
}

// NewStore returns an empty store. Besides StateIdle, the resting states keep
// their draft but do not capture free text.
func NewStore[D any](resting ...State) *Store[D] {
	s := &Store[D]{
		sessions: map[int64]Session[D]{},
		resting:  map[State]bool{StateIdle: true, "": true},
		handlers: map[State]tele.HandlerFunc{},
	}
	for _, st := range resting {
		s.resting[st] = true
	}
	return s
}

func (s *Store[D]) lookup(userID int64) Session[D] {
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	return Session[D]{State: StateIdle}
}

func (s *Store[D]) store(userID int64, sess Session[D]) Session[D] {
	if sess.State == "" {
		sess.State = StateIdle
	}
	s.sessions[userID] = sess
	return sess
}

// Get returns a copy of the user's session.
func (s *Store[D]) Get(userID int64) Session[D] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(userID)
}

// Put replaces the user's session.
func (s *Store[D]) Put(userID int64, sess Session[D]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(userID, sess)
}

// Update mutates the user's session under the write lock and returns the
// stored result.
func (s *Store[D]) Update(userID int64, fn func(*Session[D])) Session[D] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(userID)
	fn(&sess)
	return s.store(userID, sess)
}

// Clear forgets the user.
func (s *Store[D]) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// GetState returns the user's current state, StateIdle when unknown.
func (s *Store[D]) GetState(userID int64) State {
	return s.Get(userID).State
}

// Len returns the number of stored sessions.
func (s *Store[D]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// InProgress reports whether the user's state captures free text.
func (s *Store[D]) InProgress(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.resting[s.lookup(userID).State]
}

// InProgressCount returns how many stored sessions capture free text.
func (s *Store[D]) InProgressCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if !s.resting[sess.State] {
			n++
		}
	}
	return n
}

// RegisterHandler sets the handler consuming input in st. Nil is ignored.
func (s *Store[D]) RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[st] = h
}

// ManagerHandler dispatches c to the handler of the sender's current state.
// States without a handler swallow the update.
func (s *Store[D]) ManagerHandler(c tele.Context) error {
	userID := tghelpers.SenderID(c)
	s.mu.RLock()
	current := s.lookup(userID).State
	handler := s.handlers[current]
	s.mu.RUnlock()

	logger.Debug(tghelpers.BuildContext(c), "fsm", "fsm.dispatch",
		slog.String("state", string(current)),
		slog.Bool("handled", handler != nil),
	)
	if handler == nil {
		return nil
	}
	return handler(c)
}
