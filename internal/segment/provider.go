package segment

import (
	"sync"
	"sync/atomic"
)

type handle struct {
	model string
	seg   Segmenter
}

// Provider is the process-wide engine handle cache. Construction is lazy and
// guarded: exactly one build happens per model identifier even under
// concurrent first use, and callers after the first take a lock-free path.
// When the configured model changes the next call builds a fresh handle and
// the old one is discarded.
type Provider struct {
	mu      sync.Mutex
	cur     atomic.Pointer[handle]
	factory func(model string) Segmenter
}

func NewProvider(factory func(model string) Segmenter) *Provider {
	return &Provider{factory: factory}
}

func (p *Provider) Get(model string) Segmenter {
	if h := p.cur.Load(); h != nil && h.model == model {
		return h.seg
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if h := p.cur.Load(); h != nil && h.model == model {
		return h.seg
	}
	h := &handle{model: model, seg: p.factory(model)}
	p.cur.Store(h)
	return h.seg
}
