package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an uploaded image. Transitions are
// monotonic: queued -> processing -> ready|error. Terminal states never
// change again; there is no requeue path.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// IsTerminal returns true for statuses that represent a final state.
func (s Status) IsTerminal() bool {
	return s == StatusReady || s == StatusError
}

type Job struct {
	ID          uuid.UUID `db:"id"`
	ClientToken string    `db:"client_token"`
	CreatedAt   time.Time `db:"created_at"`
}

type Image struct {
	ID          uuid.UUID      `db:"id"`
	JobID       uuid.UUID      `db:"job_id"`
	Filename    string         `db:"filename"`
	CreatedAt   time.Time      `db:"created_at"`
	Status      Status         `db:"status"`
	Error       sql.NullString `db:"error"`
	OriginalKey string         `db:"original_key"`
	CutoutKey   string         `db:"cutout_key"`
	Width       sql.NullInt32  `db:"width"`
	Height      sql.NullInt32  `db:"height"`
}

// Client identity. The paid flag gates watermarking and is mutated by the
// payment collaborator, never by this service.
type Client struct {
	Token      string       `db:"token"`
	CreatedAt  time.Time    `db:"created_at"`
	Paid       bool         `db:"paid"`
	PaidAt     sql.NullTime `db:"paid_at"`
	LastSeenAt sql.NullTime `db:"last_seen_at"`
}

// BackgroundDef is an immutable catalog entry.
type BackgroundDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RenderParams is the per-request geometry for a composite. It is never
// persisted.
type RenderParams struct {
	RotateDeg  float64
	Scale      float64
	OffsetX    float64
	OffsetY    float64
	Shadow     bool
	SnapCenter bool
}
