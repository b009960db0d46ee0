package imagecache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEvictsOldestAfterCapacity(t *testing.T) {
	c := New(DefaultCapacity)
	var want []string
	for i := 0; i < 11; i++ {
		ref := fmt.Sprintf("https://cdn.example/cat-%d.jpg", i)
		c.Record(ref)
		want = append(want, ref)
	}

	snap := c.Snapshot()
	require.Len(t, snap, 10)
	assert.NotContains(t, snap, want[0])
	assert.Equal(t, want[1:], snap)
	assert.Equal(t, 10, c.Len())

	last, ok := c.MostRecent()
	require.True(t, ok)
	assert.Equal(t, want[10], last)
}

func TestCacheEmpty(t *testing.T) {
	c := New(0)
	_, ok := c.MostRecent()
	assert.False(t, ok)
	assert.Empty(t, c.Snapshot())

	c.Record("")
	assert.Equal(t, 0, c.Len())
}

func TestCacheKeepsDuplicates(t *testing.T) {
	c := New(3)
	c.Record("a")
	c.Record("a")
	c.Record("b")
	assert.Equal(t, []string{"a", "a", "b"}, c.Snapshot())
}

func TestCacheSnapshotIsCopy(t *testing.T) {
	c := New(2)
	c.Record("a")
	snap := c.Snapshot()
	snap[0] = "mutated"
	assert.Equal(t, []string{"a"}, c.Snapshot())
}

func TestCacheConcurrentRecord(t *testing.T) {
	c := New(DefaultCapacity)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Record(fmt.Sprintf("%d-%d", w, i))
				_ = c.Snapshot()
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, DefaultCapacity, c.Len())
}
