package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/pixor/internal/model"
)

var ErrJobNotFound = errors.New("render job not found")

// Repository provides CRUD operations for render jobs in the database.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveJob inserts a new render job record and returns its UUID.
func (r *Repository) SaveJob(ctx context.Context, j model.RenderJob) (uuid.UUID, error) {
	query := `
		INSERT INTO render_jobs (source_url, spec, format, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
   `

	var id uuid.UUID
	err := r.db.QueryRowContext(
		ctx, query, j.SourceURL, j.Spec, j.Format, j.Status,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save: failed to save render job: %w", err)
	}

	return id, nil
}

// GetJob retrieves a render job record by ID.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (model.RenderJob, error) {
	query := `
		SELECT source_url, spec, format, status, result_path, created_at
		FROM render_jobs
		WHERE id = $1
    `

	var j model.RenderJob
	var resultPath sql.NullString

	err := r.db.QueryRowContext(
		ctx, query, id,
	).Scan(&j.SourceURL, &j.Spec, &j.Format, &j.Status, &resultPath, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RenderJob{}, ErrJobNotFound
		}

		return model.RenderJob{}, fmt.Errorf("get: failed to get render job: %w", err)
	}

	j.ID = id
	j.ResultPath = resultPath.String

	return j, nil
}

// UpdateJob updates the result path and status of an existing job by ID.
func (r *Repository) UpdateJob(ctx context.Context, id uuid.UUID, resultPath, status string) error {
	query := `
		UPDATE render_jobs
		SET result_path = $1, status = $2
		WHERE id = $3
    `

	res, err := r.db.ExecContext(ctx, query, resultPath, status, id)
	if err != nil {
		return fmt.Errorf("update: failed to update render job: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrJobNotFound
	}

	return nil
}

// DeleteJob deletes a render job record by ID.
func (r *Repository) DeleteJob(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM render_jobs WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete render job: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrJobNotFound
	}

	return nil
}
