package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/dbx"
	"github.com/fittrack/server/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, exercise_type, status, started_at, ended_at,
	duration_seconds, total_reps, avg_form_score, max_form_score, min_form_score,
	common_errors, settings, notes, archive_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.ExerciseSession, error) {
	var s models.ExerciseSession
	err := row.Scan(
		&s.ID, &s.UserID, &s.ExerciseType, &s.Status, &s.StartedAt, &s.EndedAt,
		&s.DurationSeconds, &s.TotalReps, &s.AvgFormScore, &s.MaxFormScore, &s.MinFormScore,
		pq.Array(&s.CommonErrors), &s.Settings, &s.Notes, &s.ArchiveKey, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.ExerciseSession) error {
	query := `
		INSERT INTO exercise_sessions (user_id, exercise_type, status, settings, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, started_at, created_at, updated_at
	`
	var settings any
	if len(s.Settings) > 0 {
		settings = s.Settings
	}
	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.ExerciseType, s.Status, settings, s.Notes).
		Scan(&s.ID, &s.StartedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ExerciseSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM exercise_sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, exerciseType string, limit, offset int) ([]*models.ExerciseSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM exercise_sessions WHERE user_id = $1`
	args := []any{userID}
	if exerciseType != "" {
		query += ` AND exercise_type = $2`
		args = append(args, exerciseType)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ExerciseSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id string, status string, endedAt time.Time, durationSeconds int, agg *Aggregates) error {
	query := `
		UPDATE exercise_sessions
		SET status = $2, ended_at = $3, duration_seconds = $4,
			total_reps = $5, avg_form_score = $6, max_form_score = $7, min_form_score = $8,
			common_errors = $9, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		id, status, endedAt, durationSeconds,
		agg.TotalReps, agg.AvgFormScore, agg.MaxFormScore, agg.MinFormScore,
		pq.Array(agg.CommonErrors))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetArchiveKey(ctx context.Context, id string, key string) error {
	query := `UPDATE exercise_sessions SET archive_key = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string, userID string) error {
	query := `DELETE FROM exercise_sessions WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) InsertFrames(ctx context.Context, sessionID string, frames []*models.FrameAnalysis) (int, error) {
	query := `
		INSERT INTO frame_analyses (session_id, frame_id, timestamp, phase, rep_count,
			knee_angle, hip_angle, back_angle, form_score, confidence,
			errors, keypoints, inference_time_ms, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	inserted := 0
	for _, f := range frames {
		var keypoints any
		if len(f.Keypoints) > 0 {
			keypoints = f.Keypoints
		}
		_, err := r.db.ExecContext(ctx, query,
			sessionID, f.FrameID, f.Timestamp, f.Phase, f.RepCount,
			f.KneeAngle, f.HipAngle, f.BackAngle, f.FormScore, f.Confidence,
			pq.Array(f.Errors), keypoints, f.InferenceTimeMs, f.ProcessingTimeMs)
		if err != nil {
			return inserted, fmt.Errorf("db error: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func (r *PostgresRepository) DeleteFrames(ctx context.Context, sessionID string) error {
	query := `DELETE FROM frame_analyses WHERE session_id = $1`

	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListFrames(ctx context.Context, sessionID string, limit, offset int) ([]*models.FrameAnalysis, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, frame_id, timestamp, phase, rep_count,
			knee_angle, hip_angle, back_angle, form_score, confidence,
			errors, keypoints, inference_time_ms, processing_time_ms, created_at
		FROM frame_analyses
		WHERE session_id = $1
		ORDER BY frame_id
		LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.FrameAnalysis
	for rows.Next() {
		var f models.FrameAnalysis
		err := rows.Scan(
			&f.ID, &f.SessionID, &f.FrameID, &f.Timestamp, &f.Phase, &f.RepCount,
			&f.KneeAngle, &f.HipAngle, &f.BackAngle, &f.FormScore, &f.Confidence,
			pq.Array(&f.Errors), &f.Keypoints, &f.InferenceTimeMs, &f.ProcessingTimeMs, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// AggregateFrames computes rep totals and form-score statistics in the
// database. Common errors are the five most frequent error labels across
// all frames of the session.
func (r *PostgresRepository) AggregateFrames(ctx context.Context, sessionID string) (*Aggregates, error) {
	query := `
		SELECT COALESCE(MAX(rep_count), 0),
			COALESCE(AVG(form_score), 0),
			COALESCE(MAX(form_score), 0),
			COALESCE(MIN(form_score), 0)
		FROM frame_analyses
		WHERE session_id = $1
	`
	var agg Aggregates
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&agg.TotalReps, &agg.AvgFormScore, &agg.MaxFormScore, &agg.MinFormScore)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	errQuery := `
		SELECT e
		FROM frame_analyses, unnest(errors) AS e
		WHERE session_id = $1
		GROUP BY e
		ORDER BY count(*) DESC, e
		LIMIT 5
	`
	rows, err := r.db.QueryContext(ctx, errQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	agg.CommonErrors = []string{}
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		agg.CommonErrors = append(agg.CommonErrors, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &agg, nil
}
