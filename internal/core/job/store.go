package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store handles job persistence and the status state machine. Every status
// transition is a single guarded UPDATE so concurrent writers cannot move a
// job backwards or out of a terminal state.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const jobColumns = `id::text, url, status, progress,
	COALESCE(stems, ''), COALESCE(stems_dir, ''), COALESCE(error_message, ''),
	client_id, COALESCE(processing_seconds, 0), created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var stems string
	err := row.Scan(&j.ID, &j.URL, &j.Status, &j.Progress,
		&stems, &j.StemsDir, &j.ErrorMessage,
		&j.ClientID, &j.ProcessingSeconds, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	j.Stems = splitStems(stems)
	return &j, nil
}

// Create inserts a new pending job and returns it.
func (s *Store) Create(ctx context.Context, url, clientID string) (*Job, error) {
	id := uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO jobs (id, url, status, client_id)
		VALUES ($1::uuid, $2, 'pending', $3)
		RETURNING `+jobColumns,
		id, url, clientID)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

// CreateCompleted inserts a job that is already complete, used when a cache
// hit short-circuits the pipeline. The stems are copied by value; the new
// record shares nothing with the job that produced the cache entry.
func (s *Store) CreateCompleted(ctx context.Context, url, clientID string, stems []string, stemsDir string) (*Job, error) {
	id := uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO jobs (id, url, status, progress, stems, stems_dir, client_id)
		VALUES ($1::uuid, $2, 'completed', 100, $3, $4, $5)
		RETURNING `+jobColumns,
		id, url, joinStems(stems), stemsDir, clientID)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create completed job: %w", err)
	}
	return j, nil
}

// Get fetches a job by id. Returns ErrNotFound for unknown or malformed ids.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1::uuid`, id)
	return scanJob(row)
}

// MarkProcessing claims a job for a worker attempt. Idempotent across retry
// attempts: a job already processing stays processing. Progress never moves
// backwards.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'processing', progress = GREATEST(progress, 10), updated_at = NOW()
		WHERE id = $1::uuid AND status IN ('pending', 'processing')`,
		id)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SetProgress records pipeline progress. Only meaningful while processing;
// monotonically non-decreasing.
func (s *Store) SetProgress(ctx context.Context, id string, progress int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET progress = GREATEST(progress, $2), updated_at = NOW()
		WHERE id = $1::uuid AND status = 'processing'`,
		id, progress)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Complete transitions a processing job to completed with its stem list.
func (s *Store) Complete(ctx context.Context, id string, stems []string, stemsDir string, seconds int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'completed', progress = 100, stems = $2, stems_dir = $3,
		    processing_seconds = $4, updated_at = NOW()
		WHERE id = $1::uuid AND status = 'processing'`,
		id, joinStems(stems), stemsDir, seconds)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Fail transitions a non-terminal job to error with the final failure
// message.
func (s *Store) Fail(ctx context.Context, id, message string, seconds int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'error', error_message = $2, processing_seconds = $3, updated_at = NOW()
		WHERE id = $1::uuid AND status IN ('pending', 'processing')`,
		id, message, seconds)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// CountActive returns the number of pending+processing jobs owned by a
// client. Computed from live rows, not a side counter, so it cannot drift
// from the store under crashes or early returns.
func (s *Store) CountActive(ctx context.Context, clientID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE client_id = $1 AND status IN ('pending', 'processing')`,
		clientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}

// List returns jobs newest-first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status, limit, offset int) ([]*Job, error) {
	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = s.db.Query(ctx, `
			SELECT `+jobColumns+` FROM jobs
			WHERE status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+jobColumns+` FROM jobs
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListOlderThan returns jobs created before the cutoff, for the retention
// sweeper.
func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE created_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list old jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Delete removes a job record.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM jobs WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}
