package favorites

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/memebot/metrics"
)

// Store implements per-user favorites on top of a Repository.
type Store struct {
	repo    Repository
	limit   int
	now     func() time.Time
	metrics *metrics.Metrics

	mu sync.Mutex
}

// Option customises a Store.
type Option func(*Store)

// WithLimit overrides DefaultLimit.
func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics counts store operations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore returns a Store backed by repo.
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{repo: repo, limit: DefaultLimit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (s *Store) load(ctx context.Context) (Document, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("favorites: load: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func (s *Store) save(ctx context.Context, doc Document) error {
	if err := s.repo.Save(ctx, doc); err != nil {
		logger.Error(ctx, "favorites", "save",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("favorites: save: %w", err)
	}
	return nil
}

// Add appends meme to the user's list. The oldest entries are dropped once
// the list exceeds the store limit. An empty CreatedAt is stamped with the clock.
func (s *Store) Add(ctx context.Context, userID int64, meme Meme) (err error) {
	defer func() { s.metrics.ObserveFavorites("add", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	key := userKey(userID)
	entry := doc[key]
	for _, existing := range entry.Favorites {
		if existing.SameAs(meme) {
			return ErrDuplicate
		}
	}
	if meme.CreatedAt == "" {
		meme.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}

	list := make([]Meme, 0, len(entry.Favorites)+1)
	list = append(list, entry.Favorites...)
	list = append(list, meme)
	evicted := 0
	if over := len(list) - s.limit; over > 0 {
		list = list[over:]
		evicted = over
	}
	doc[key] = UserFavorites{Favorites: list}

	if err := s.save(ctx, doc); err != nil {
		return err
	}
	logger.Info(ctx, "favorites", "add",
		slog.String("status", "ok"),
		slog.Int("favorites", len(list)),
		slog.Int("evicted", evicted),
	)
	return nil
}

// List returns the user's favorites in insertion order.
// An unknown user has an empty list.
func (s *Store) List(ctx context.Context, userID int64) (_ []Meme, err error) {
	defer func() { s.metrics.ObserveFavorites("list", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	src := doc[userKey(userID)].Favorites
	out := make([]Meme, len(src))
	copy(out, src)
	return out, nil
}

// Count returns the number of favorites the user has.
func (s *Store) Count(ctx context.Context, userID int64) (int, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// RemoveAt deletes the favorite at index and returns it.
// An index outside [0, len) leaves the list unchanged and returns ErrIndexOutOfRange.
func (s *Store) RemoveAt(ctx context.Context, userID int64, index int) (_ Meme, err error) {
	defer func() { s.metrics.ObserveFavorites("remove", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return Meme{}, err
	}
	key := userKey(userID)
	entry, ok := doc[key]
	if !ok || index < 0 || index >= len(entry.Favorites) {
		return Meme{}, ErrIndexOutOfRange
	}
	removed := entry.Favorites[index]
	list := make([]Meme, 0, len(entry.Favorites)-1)
	list = append(list, entry.Favorites[:index]...)
	list = append(list, entry.Favorites[index+1:]...)
	doc[key] = UserFavorites{Favorites: list}

	if err := s.save(ctx, doc); err != nil {
		return Meme{}, err
	}
	logger.Info(ctx, "favorites", "remove",
		slog.String("status", "ok"),
		slog.Int("index", index),
		slog.Int("favorites", len(list)),
	)
	return removed, nil
}

// Clear empties the user's list but keeps the user in the document.
func (s *Store) Clear(ctx context.Context, userID int64) (err error) {
	defer func() { s.metrics.ObserveFavorites("clear", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	key := userKey(userID)
	if _, ok := doc[key]; !ok {
		return ErrUnknownUser
	}
	doc[key] = UserFavorites{Favorites: []Meme{}}
	if err := s.save(ctx, doc); err != nil {
		return err
	}
	logger.Info(ctx, "favorites", "clear", slog.String("status", "ok"))
	return nil
}
