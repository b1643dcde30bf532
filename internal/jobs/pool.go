package jobs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"runtime/debug"

	_ "image/jpeg"
	_ "image/png"

	"carstage/internal/blob"
	"carstage/internal/segment"
)

// maxErrorDetail bounds the free-text error recorded on an image.
const maxErrorDetail = 2000

// Pool runs segmentation tasks on a fixed number of workers fed by a bounded
// channel. A task produces exactly one terminal transition for its image;
// nothing is retried and nothing escapes a worker goroutine.
type Pool struct {
	tasks    chan Task
	workers  int
	store    Store
	blobs    blob.Store
	provider *segment.Provider
	model    string
}

func NewPool(workers, queueSize int, store Store, blobs blob.Store, provider *segment.Provider, model string) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		tasks:    make(chan Task, queueSize),
		workers:  workers,
		store:    store,
		blobs:    blobs,
		provider: provider,
		model:    model,
	}
}

// Start launches the worker goroutines; they exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for range p.workers {
		go p.run(ctx)
	}
}

// Dispatch enqueues without blocking; a full queue is an error surfaced to
// the submitter.
func (p *Pool) Dispatch(_ context.Context, t Task) error {
	select {
	case p.tasks <- t:
		return nil
	default:
		return fmt.Errorf("worker queue full: cannot enqueue image %s", t.ImageID)
	}
}

// Submit blocks until the task is accepted or ctx ends. Used by the Kafka
// consumer so backpressure reaches the broker instead of dropping tasks.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			p.process(ctx, t)
		}
	}
}

// process turns one original into one cutout. Any failure, including a
// panic, becomes the image's terminal error state.
func (p *Pool) process(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, t, fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	rc, err := p.blobs.Open(ctx, t.OriginalKey)
	if err != nil {
		p.fail(ctx, t, fmt.Sprintf("read original: %v", err))
		return
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		p.fail(ctx, t, fmt.Sprintf("read original: %v", err))
		return
	}

	seg := p.provider.Get(p.model)
	out, err := seg.Segment(ctx, raw)
	if err != nil {
		p.fail(ctx, t, fmt.Sprintf("segmentation: %v", err))
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		p.fail(ctx, t, fmt.Sprintf("decode cutout: %v", err))
		return
	}

	if err := p.blobs.Put(ctx, t.CutoutKey, bytes.NewReader(out)); err != nil {
		p.fail(ctx, t, fmt.Sprintf("write cutout: %v", err))
		return
	}

	if err := p.store.MarkReady(ctx, t.ImageID, cfg.Width, cfg.Height); err != nil {
		p.store.Log(ctx, "error", "image.ready.update", fmt.Sprintf("image=%s: %v", t.ImageID, err))
		return
	}
	p.store.Log(ctx, "info", "image.ready", fmt.Sprintf("image=%s %dx%d", t.ImageID, cfg.Width, cfg.Height))
}

func (p *Pool) fail(ctx context.Context, t Task, detail string) {
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail]
	}
	if err := p.store.MarkError(ctx, t.ImageID, detail); err != nil {
		p.store.Log(ctx, "error", "image.error.update", fmt.Sprintf("image=%s: %v", t.ImageID, err))
		return
	}
	p.store.Log(ctx, "error", "image.error", fmt.Sprintf("image=%s\n%s", t.ImageID, detail))
}
