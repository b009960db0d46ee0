package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/memebot/metrics"
)

type memRepo struct {
	mu      sync.Mutex
	doc     Document
	saveErr error
	loadErr error
	saves   int
}

func (r *memRepo) Load(context.Context) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	out := Document{}
	for k, v := range r.doc {
		out[k] = UserFavorites{Favorites: append([]Meme(nil), v.Favorites...)}
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.doc = doc
	r.saves++
	return nil
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func newTestStore(repo Repository) *Store {
	return NewStore(repo, WithClock(fixedClock))
}

func meme(i int) Meme {
	return Meme{URL: fmt.Sprintf("https://img.example/%d.png", i), Top: "TOP", Bottom: "BOTTOM"}
}

func TestAddThenListRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&memRepo{})

	require.NoError(t, s.Add(ctx, 7, meme(1)))
	list, err := s.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://img.example/1.png", list[0].URL)
	assert.Equal(t, fixedClock().UTC().Format(time.RFC3339), list[0].CreatedAt)

	err = s.Add(ctx, 7, meme(1))
	require.ErrorIs(t, err, ErrDuplicate)
	n, err := s.Count(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddSameURLDifferentCaptionIsDistinct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&memRepo{})
	m := meme(1)
	require.NoError(t, s.Add(ctx, 1, m))
	m.Bottom = "OTHER"
	require.NoError(t, s.Add(ctx, 1, m))
	n, _ := s.Count(ctx, 1)
	assert.Equal(t, 2, n)
}

func TestAddEvictsOldestBeyondLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&memRepo{})
	for i := 0; i < DefaultLimit+1; i++ {
		require.NoError(t, s.Add(ctx, 1, meme(i)))
	}
	list, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, DefaultLimit)
	assert.Equal(t, meme(1).URL, list[0].URL)
	assert.Equal(t, meme(DefaultLimit).URL, list[len(list)-1].URL)
}

func TestRemoveAtOutOfRangeLeavesListUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := newTestStore(repo)
	require.NoError(t, s.Add(ctx, 1, meme(0)))
	require.NoError(t, s.Add(ctx, 1, meme(1)))
	before, _ := s.List(ctx, 1)
	saves := repo.saves

	for _, idx := range []int{-1, 2, 100} {
		_, err := s.RemoveAt(ctx, 1, idx)
		require.ErrorIs(t, err, ErrIndexOutOfRange, "index %d", idx)
	}
	_, err := s.RemoveAt(ctx, 99, 0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	after, _ := s.List(ctx, 1)
	assert.Equal(t, before, after)
	assert.Equal(t, saves, repo.saves)
}

func TestRemoveAtReturnsRemoved(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&memRepo{})
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Add(ctx, 1, meme(i)))
	}
	removed, err := s.RemoveAt(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, meme(1).URL, removed.URL)

	list, _ := s.List(ctx, 1)
	require.Len(t, list, 2)
	assert.Equal(t, meme(0).URL, list[0].URL)
	assert.Equal(t, meme(2).URL, list[1].URL)
}

func TestClearKeepsUserKey(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := newTestStore(repo)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(ctx, 3, meme(i)))
	}
	require.NoError(t, s.Clear(ctx, 3))

	list, err := s.List(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, list)
	n, _ := s.Count(ctx, 3)
	assert.Equal(t, 0, n)
	_, ok := repo.doc["3"]
	assert.True(t, ok)

	require.NoError(t, s.Add(ctx, 3, meme(9)))
	n, _ = s.Count(ctx, 3)
	assert.Equal(t, 1, n)
}

func TestClearUnknownUser(t *testing.T) {
	s := newTestStore(&memRepo{})
	require.ErrorIs(t, s.Clear(context.Background(), 42), ErrUnknownUser)
}

func TestListUnknownUserIsEmpty(t *testing.T) {
	list, err := newTestStore(&memRepo{}).List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepositoryFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	repo := &memRepo{}
	s := newTestStore(repo)
	require.NoError(t, s.Add(ctx, 1, meme(0)))

	repo.saveErr = boom
	err := s.Add(ctx, 1, meme(1))
	require.ErrorIs(t, err, boom)
	repo.saveErr = nil
	n, _ := s.Count(ctx, 1)
	assert.Equal(t, 1, n)

	repo.loadErr = boom
	_, err = s.List(ctx, 1)
	require.ErrorIs(t, err, boom)
}

func TestConcurrentAddsDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&memRepo{})
	var wg sync.WaitGroup
	for u := int64(1); u <= 10; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				assert.NoError(t, s.Add(ctx, u, meme(i)))
			}
		}(u)
	}
	wg.Wait()
	for u := int64(1); u <= 10; u++ {
		n, err := s.Count(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}
}

func TestStoreCountsOperations(t *testing.T) {
	m := metrics.New()
	repo := &memRepo{}
	s := NewStore(repo, WithClock(fixedClock), WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, Meme{URL: "u"}))
	require.ErrorIs(t, s.Add(ctx, 1, Meme{URL: "u"}), ErrDuplicate)
	_, err := s.RemoveAt(ctx, 1, 3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FavoritesOps.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FavoritesOps.WithLabelValues("add", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FavoritesOps.WithLabelValues("remove", "fail")))
}
