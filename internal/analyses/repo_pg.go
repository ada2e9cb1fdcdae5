package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres. The full report is kept as JSONB;
// the summary columns beside it exist for filtering and Stats.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, user_id, file_name, image_key, status, location, notes, report, created_at, updated_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, user_id, file_name, image_key, status, location, notes,
	crop_type, pest_name, severity, confidence, immediate_action, report, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14, $15)`

	report, err := json.Marshal(analysis.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		analysis.FileName,
		analysis.ImageKey,
		analysis.Status,
		analysis.Location,
		analysis.Notes,
		analysis.Report.CropType,
		analysis.Report.PestName,
		string(analysis.Report.Severity),
		analysis.Report.ConfidenceScore,
		analysis.Report.ImmediateActionNeeded,
		report,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	return err
}

// GetByID returns the user's analysis with the given ID.
func (r *PGRepo) GetByID(ctx context.Context, userID, analysisID string) (Analysis, error) {
	query := `
SELECT ` + selectColumns + `
FROM analyses
WHERE id = $1 AND user_id = $2
LIMIT 1`

	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

// UpdateStatus sets the tracking status and returns the updated row.
func (r *PGRepo) UpdateStatus(ctx context.Context, userID, analysisID, status string) (Analysis, error) {
	query := `
UPDATE analyses
SET status = $1,
    updated_at = now()
WHERE id = $2 AND user_id = $3
RETURNING ` + selectColumns

	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, status, analysisID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

// ListByUser lists analyses for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	limit, offset = clampPage(limit, offset)

	query := `
SELECT ` + selectColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Stats aggregates the user's analyses by status and severity.
func (r *PGRepo) Stats(ctx context.Context, userID string) (Stats, error) {
	const query = `
SELECT status, severity, immediate_action, COUNT(*)
FROM analyses
WHERE user_id = $1
GROUP BY status, severity, immediate_action`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	stats := newStats()
	for rows.Next() {
		var status, severity string
		var immediate bool
		var n int
		if err := rows.Scan(&status, &severity, &immediate, &n); err != nil {
			return Stats{}, err
		}
		stats.add(status, severity, immediate, n)
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var report []byte
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.FileName,
		&a.ImageKey,
		&a.Status,
		&a.Location,
		&a.Notes,
		&report,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Analysis{}, err
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &a.Report); err != nil {
			return Analysis{}, fmt.Errorf("decode report %s: %w", a.ID, err)
		}
	}
	return a, nil
}
