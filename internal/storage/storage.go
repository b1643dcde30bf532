package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"carstage/internal/models"
)

// ErrNotFound covers unknown ids and ownership mismatches alike, so a
// foreign id is indistinguishable from a missing one.
var ErrNotFound = errors.New("not found")

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) CreateJob(ctx context.Context, job *models.Job) error {
	const op = "storage.CreateJob"
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, client_token, created_at) VALUES ($1, $2, $3)`,
		job.ID, job.ClientToken, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) CreateImage(ctx context.Context, img *models.Image) error {
	const op = "storage.CreateImage"
	_, err := s.pool.Exec(ctx,
		`INSERT INTO images (id, job_id, filename, created_at, status, original_key, cutout_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		img.ID, img.JobID, img.Filename, img.CreatedAt, img.Status, img.OriginalKey, img.CutoutKey)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// MarkProcessing flips a queued image to processing. Each transition below is
// a single statement, so a partial update is never visible.
func (s *Storage) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const op = "storage.MarkProcessing"
	_, err := s.pool.Exec(ctx,
		`UPDATE images SET status = $2 WHERE id = $1 AND status = $3`,
		id, models.StatusProcessing, models.StatusQueued)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// MarkReady records the terminal success state with decoded dimensions and
// clears any prior error detail.
func (s *Storage) MarkReady(ctx context.Context, id uuid.UUID, width, height int) error {
	const op = "storage.MarkReady"
	_, err := s.pool.Exec(ctx,
		`UPDATE images SET status = $2, width = $3, height = $4, error = NULL
		 WHERE id = $1 AND status = $5`,
		id, models.StatusReady, width, height, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// MarkError records the terminal failure state. Images in error stay there;
// there is no requeue path.
func (s *Storage) MarkError(ctx context.Context, id uuid.UUID, detail string) error {
	const op = "storage.MarkError"
	_, err := s.pool.Exec(ctx,
		`UPDATE images SET status = $2, error = $3 WHERE id = $1 AND status = $4`,
		id, models.StatusError, detail, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// ImagesByJob returns every image of the job, scoped to the owning client.
// A foreign or unknown job id yields ErrNotFound.
func (s *Storage) ImagesByJob(ctx context.Context, token string, jobID uuid.UUID) ([]models.Image, error) {
	const op = "storage.ImagesByJob"

	var owner string
	err := s.pool.QueryRow(ctx,
		`SELECT client_token FROM jobs WHERE id = $1 AND client_token = $2`,
		jobID, token).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, filename, created_at, status, error, original_key, cutout_key, width, height
		 FROM images WHERE job_id = $1 ORDER BY created_at ASC, id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var imgs []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.JobID, &img.Filename, &img.CreatedAt, &img.Status,
			&img.Error, &img.OriginalKey, &img.CutoutKey, &img.Width, &img.Height); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		imgs = append(imgs, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return imgs, nil
}

// ImageByID returns one image scoped to the owning client via its job.
func (s *Storage) ImageByID(ctx context.Context, token string, id uuid.UUID) (*models.Image, error) {
	const op = "storage.ImageByID"
	var img models.Image
	err := s.pool.QueryRow(ctx,
		`SELECT i.id, i.job_id, i.filename, i.created_at, i.status, i.error,
		        i.original_key, i.cutout_key, i.width, i.height
		 FROM images i JOIN jobs j ON j.id = i.job_id
		 WHERE i.id = $1 AND j.client_token = $2`,
		id, token).Scan(&img.ID, &img.JobID, &img.Filename, &img.CreatedAt, &img.Status,
		&img.Error, &img.OriginalKey, &img.CutoutKey, &img.Width, &img.Height)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &img, nil
}

func (s *Storage) UpsertClient(ctx context.Context, token string) error {
	const op = "storage.UpsertClient"
	now := time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clients (token, created_at, last_seen_at) VALUES ($1, $2, $2)
		 ON CONFLICT (token) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		token, now)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) GetClient(ctx context.Context, token string) (*models.Client, error) {
	const op = "storage.GetClient"
	var c models.Client
	err := s.pool.QueryRow(ctx,
		`SELECT token, created_at, paid, paid_at, last_seen_at FROM clients WHERE token = $1`,
		token).Scan(&c.Token, &c.CreatedAt, &c.Paid, &c.PaidAt, &c.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &c, nil
}

// Paid reports whether the client has the paid flag. Unknown tokens are
// simply unpaid.
func (s *Storage) Paid(ctx context.Context, token string) bool {
	c, err := s.GetClient(ctx, token)
	return err == nil && c.Paid
}

// SetPaid is invoked by the payment collaborator when a purchase settles.
func (s *Storage) SetPaid(ctx context.Context, token string) error {
	const op = "storage.SetPaid"
	_, err := s.pool.Exec(ctx,
		`UPDATE clients SET paid = TRUE, paid_at = $2 WHERE token = $1`,
		token, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// Log appends an operational event. Failures are swallowed: the event log is
// diagnostics, not state.
func (s *Storage) Log(ctx context.Context, level, event, detail string) {
	_, _ = s.pool.Exec(ctx,
		`INSERT INTO events (ts, level, event, detail) VALUES ($1, $2, $3, $4)`,
		time.Now(), level, event, detail)
}

type Stats struct {
	Uploads   int64
	Processed int64
	Paying    int64
}

func (s *Storage) Stats(ctx context.Context) (*Stats, error) {
	const op = "storage.Stats"
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM images),
		  (SELECT COUNT(*) FROM images WHERE status = 'ready'),
		  (SELECT COUNT(*) FROM clients WHERE paid)`).
		Scan(&st.Uploads, &st.Processed, &st.Paying)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &st, nil
}
