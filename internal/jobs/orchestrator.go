// Package jobs owns the lifecycle of uploaded images from intake to
// ready/error: persisting originals, dispatching segmentation tasks onto a
// bounded worker pool and answering owner-scoped status queries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"carstage/internal/blob"
	"carstage/internal/models"
)

var (
	ErrNoFiles = errors.New("no files uploaded")
	ErrNoOwner = errors.New("missing client identity")
)

// Store is the slice of the persistent state store the pipeline needs. Every
// mutation is a single atomic write on the other side.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	CreateImage(ctx context.Context, img *models.Image) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID, width, height int) error
	MarkError(ctx context.Context, id uuid.UUID, detail string) error
	ImagesByJob(ctx context.Context, token string, jobID uuid.UUID) ([]models.Image, error)
	ImageByID(ctx context.Context, token string, id uuid.UUID) (*models.Image, error)
	Log(ctx context.Context, level, event, detail string)
}

// Task is one unit of segmentation work. It carries the artifact keys so
// workers (possibly on another instance, via Kafka) need no extra lookup.
type Task struct {
	ImageID     uuid.UUID `json:"image_id"`
	OriginalKey string    `json:"original_key"`
	CutoutKey   string    `json:"cutout_key"`
}

// Dispatcher hands a task to whatever executes it. Dispatch is
// fire-and-forget: it returns once the task is accepted, not completed.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task) error
}

type Upload struct {
	Filename string
	Data     io.Reader
}

type Orchestrator struct {
	store Store
	blobs blob.Store
	disp  Dispatcher
}

func NewOrchestrator(store Store, blobs blob.Store, disp Dispatcher) *Orchestrator {
	return &Orchestrator{store: store, blobs: blobs, disp: disp}
}

// CreateJob persists one job plus one queued image per upload, then submits
// exactly one segmentation task per image. It returns before any
// segmentation completes; callers poll for status.
func (o *Orchestrator) CreateJob(ctx context.Context, token string, uploads []Upload) (*models.Job, []models.Image, error) {
	const op = "jobs.CreateJob"

	if token == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrNoOwner)
	}
	if len(uploads) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrNoFiles)
	}

	now := time.Now()
	job := &models.Job{ID: uuid.New(), ClientToken: token, CreatedAt: now}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("%s: %v", op, err)
	}

	var imgs []models.Image
	for _, up := range uploads {
		id := uuid.New()
		fname := blob.SafeFilename(up.Filename)
		img := models.Image{
			ID:          id,
			JobID:       job.ID,
			Filename:    fname,
			CreatedAt:   now,
			Status:      models.StatusQueued,
			OriginalKey: fmt.Sprintf("original/%s_%s", id, fname),
			CutoutKey:   fmt.Sprintf("cutout/%s.png", id),
		}

		if err := o.blobs.Put(ctx, img.OriginalKey, up.Data); err != nil {
			return nil, nil, fmt.Errorf("%s: %v", op, err)
		}
		if err := o.store.CreateImage(ctx, &img); err != nil {
			return nil, nil, fmt.Errorf("%s: %v", op, err)
		}
		imgs = append(imgs, img)
	}

	for _, img := range imgs {
		if err := o.store.MarkProcessing(ctx, img.ID); err != nil {
			log.Printf("%s: mark processing %s: %v", op, img.ID, err)
			continue
		}
		task := Task{ImageID: img.ID, OriginalKey: img.OriginalKey, CutoutKey: img.CutoutKey}
		if err := o.disp.Dispatch(ctx, task); err != nil {
			// The image would otherwise sit in processing forever.
			detail := fmt.Sprintf("dispatch failed: %v", err)
			if merr := o.store.MarkError(ctx, img.ID, detail); merr != nil {
				log.Printf("%s: mark error %s: %v", op, img.ID, merr)
			}
		}
	}

	o.store.Log(ctx, "info", "job.created", fmt.Sprintf("job=%s images=%d client=%s", job.ID, len(imgs), token))
	return job, imgs, nil
}

// JobStatus returns the current row of every image in the job, scoped to the
// owning client. Unknown and foreign job ids look identical to the caller.
func (o *Orchestrator) JobStatus(ctx context.Context, token string, jobID uuid.UUID) ([]models.Image, error) {
	const op = "jobs.JobStatus"

	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoOwner)
	}
	imgs, err := o.store.ImagesByJob(ctx, token, jobID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return imgs, nil
}
