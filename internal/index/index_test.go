package index

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbeck/coursemirror/internal/fingerprint"
)

func fp(b byte) fingerprint.Fingerprint {
	var f fingerprint.Fingerprint
	f[0] = b

	return f
}

func TestMemoryContainsInsert(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	seen, err := idx.Contains(ctx, "course-1", fp(1))
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, idx.Insert(ctx, "course-1", fp(1)))

	seen, err = idx.Contains(ctx, "course-1", fp(1))
	require.NoError(t, err)
	assert.True(t, seen)

	// Per-course namespaces don't leak into each other.
	seen, err = idx.Contains(ctx, "course-2", fp(1))
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryInsertIdempotent(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, "course-1", fp(1)))
	require.NoError(t, idx.Insert(ctx, "course-1", fp(1)))

	assert.Equal(t, 1, idx.Len("course-1"))
}

func TestMemoryConcurrentAccess(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				b := byte(j)
				_ = idx.Insert(ctx, "course-1", fp(b))
				_, _ = idx.Contains(ctx, "course-1", fp(b))
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 100, idx.Len("course-1"), "concurrent idempotent inserts must not lose or duplicate entries")
}
