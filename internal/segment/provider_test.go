package segment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSegmenter struct {
	model string
}

func (s *stubSegmenter) Segment(_ context.Context, original []byte) ([]byte, error) {
	return original, nil
}

func TestProviderReusesHandle(t *testing.T) {
	t.Parallel()

	var builds int32
	p := NewProvider(func(model string) Segmenter {
		atomic.AddInt32(&builds, 1)
		return &stubSegmenter{model: model}
	})

	a := p.Get("u2net")
	b := p.Get("u2net")
	assert.Same(t, a, b)
	assert.EqualValues(t, 1, atomic.LoadInt32(&builds))
}

func TestProviderRebuildsOnModelChange(t *testing.T) {
	t.Parallel()

	var builds int32
	p := NewProvider(func(model string) Segmenter {
		atomic.AddInt32(&builds, 1)
		return &stubSegmenter{model: model}
	})

	a := p.Get("u2net")
	b := p.Get("isnet-general-use")
	require.NotSame(t, a, b)
	assert.Equal(t, "isnet-general-use", b.(*stubSegmenter).model)
	assert.EqualValues(t, 2, atomic.LoadInt32(&builds))

	// The old handle is discarded; the next call sees the new one.
	c := p.Get("isnet-general-use")
	assert.Same(t, b, c)
}

func TestProviderConcurrentFirstUse(t *testing.T) {
	t.Parallel()

	var builds int32
	p := NewProvider(func(model string) Segmenter {
		atomic.AddInt32(&builds, 1)
		return &stubSegmenter{model: model}
	})

	var wg sync.WaitGroup
	results := make([]Segmenter, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Get("u2net")
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&builds))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
