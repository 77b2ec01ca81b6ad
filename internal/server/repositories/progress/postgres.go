package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) AwardAchievement(ctx context.Context, a *models.Achievement) (bool, error) {
	query := `
		INSERT INTO achievements (user_id, achievement_type, title, description, icon_url, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, achievement_type) DO NOTHING
		RETURNING id, earned_at, created_at
	`
	var metadata any
	if len(a.Metadata) > 0 {
		metadata = a.Metadata
	}
	err := r.db.QueryRowContext(ctx, query,
		a.UserID, a.AchievementType, a.Title, a.Description, a.IconURL, metadata).
		Scan(&a.ID, &a.EarnedAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Already earned.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) ListAchievements(ctx context.Context, userID string) ([]*models.Achievement, error) {
	query := `
		SELECT id, user_id, achievement_type, title, description, icon_url, metadata, earned_at, created_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY earned_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Achievement
	for rows.Next() {
		var a models.Achievement
		err := rows.Scan(&a.ID, &a.UserID, &a.AchievementType, &a.Title,
			&a.Description, &a.IconURL, &a.Metadata, &a.EarnedAt, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

const planColumns = `id, user_id, name, description, difficulty_level, duration_days,
	exercises_per_week, plan_data, is_active, is_public, total_completed_sessions,
	completion_percent, started_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.WorkoutPlan, error) {
	var p models.WorkoutPlan
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.DifficultyLevel, &p.DurationDays,
		&p.ExercisesPerWeek, &p.PlanData, &p.IsActive, &p.IsPublic, &p.TotalCompletedSessions,
		&p.CompletionPercent, &p.StartedAt, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) CreatePlan(ctx context.Context, p *models.WorkoutPlan) error {
	query := `
		INSERT INTO workout_plans (user_id, name, description, difficulty_level,
			duration_days, exercises_per_week, plan_data, is_active, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.UserID, p.Name, p.Description, p.DifficultyLevel,
		p.DurationDays, p.ExercisesPerWeek, p.PlanData, p.IsActive, p.IsPublic).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPlan(ctx context.Context, id string) (*models.WorkoutPlan, error) {
	query := `SELECT ` + planColumns + ` FROM workout_plans WHERE id = $1`

	p, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListPlans(ctx context.Context, userID string) ([]*models.WorkoutPlan, error) {
	query := `SELECT ` + planColumns + ` FROM workout_plans WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.WorkoutPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdatePlan(ctx context.Context, p *models.WorkoutPlan) error {
	query := `
		UPDATE workout_plans
		SET name = $3, description = $4, difficulty_level = $5, duration_days = $6,
			exercises_per_week = $7, plan_data = $8, is_active = $9, is_public = $10,
			total_completed_sessions = $11, completion_percent = $12,
			started_at = $13, completed_at = $14, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Name, p.Description, p.DifficultyLevel, p.DurationDays,
		p.ExercisesPerWeek, p.PlanData, p.IsActive, p.IsPublic,
		p.TotalCompletedSessions, p.CompletionPercent, p.StartedAt, p.CompletedAt)
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

func (r *PostgresRepository) DeletePlan(ctx context.Context, id string, userID string) error {
	query := `DELETE FROM workout_plans WHERE id = $1 AND user_id = $2`

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

func (r *PostgresRepository) UpsertDailyStats(ctx context.Context, userID string, date time.Time, reps int, durationSeconds int, formScore float64) error {
	query := `
		INSERT INTO daily_stats (user_id, date, total_workouts, total_reps, total_duration_seconds, avg_form_score)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_workouts = daily_stats.total_workouts + 1,
			total_reps = daily_stats.total_reps + EXCLUDED.total_reps,
			total_duration_seconds = daily_stats.total_duration_seconds + EXCLUDED.total_duration_seconds,
			avg_form_score = (daily_stats.avg_form_score * daily_stats.total_workouts + EXCLUDED.avg_form_score)
				/ (daily_stats.total_workouts + 1),
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query,
		userID, date.Format("2006-01-02"), reps, durationSeconds, formScore)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListDailyStats(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyStats, error) {
	query := `
		SELECT id, user_id, date, total_workouts, total_reps, total_duration_seconds,
			avg_form_score, exercises_breakdown, created_at, updated_at
		FROM daily_stats
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date
	`
	rows, err := r.db.QueryContext(ctx, query,
		userID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.DailyStats
	for rows.Next() {
		var d models.DailyStats
		err := rows.Scan(&d.ID, &d.UserID, &d.Date, &d.TotalWorkouts, &d.TotalReps,
			&d.TotalDurationSeconds, &d.AvgFormScore, &d.ExercisesBreakdown,
			&d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountCompletedSessions(ctx context.Context, userID string) (int, error) {
	query := `SELECT count(*) FROM exercise_sessions WHERE user_id = $1 AND status = $2`

	var n int
	err := r.db.QueryRowContext(ctx, query, userID, models.SessionStatusCompleted).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
