package models

import "time"

// Achievement records a milestone earned by a user, e.g. "first_workout"
// or "7_day_streak".
type Achievement struct {
	ID              string `db:"id"`
	UserID          string `db:"user_id"`
	AchievementType string `db:"achievement_type"`
	Title           string `db:"title"`
	Description     string `db:"description"`
	IconURL         string `db:"icon_url"`
	Metadata        []byte `db:"metadata"` // opaque JSON

	EarnedAt  time.Time `db:"earned_at"`
	CreatedAt time.Time `db:"created_at"`
}

// WorkoutPlan is a personalized training plan. PlanData holds the week/day
// structure as opaque JSON owned by the client.
type WorkoutPlan struct {
	ID              string `db:"id"`
	UserID          string `db:"user_id"`
	Name            string `db:"name"`
	Description     string `db:"description"`
	DifficultyLevel string `db:"difficulty_level"`

	DurationDays     int    `db:"duration_days"`
	ExercisesPerWeek int    `db:"exercises_per_week"`
	PlanData         []byte `db:"plan_data"`

	IsActive bool `db:"is_active"`
	IsPublic bool `db:"is_public"`

	TotalCompletedSessions int     `db:"total_completed_sessions"`
	CompletionPercent      float64 `db:"completion_percent"`

	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// DailyStats is the per-user, per-day aggregate used for charts. One row
// per (user, date); recomputed whenever a session for that date completes.
type DailyStats struct {
	ID     string    `db:"id"`
	UserID string    `db:"user_id"`
	Date   time.Time `db:"date"`

	TotalWorkouts        int     `db:"total_workouts"`
	TotalReps            int     `db:"total_reps"`
	TotalDurationSeconds int     `db:"total_duration_seconds"`
	AvgFormScore         float64 `db:"avg_form_score"`

	ExercisesBreakdown []byte `db:"exercises_breakdown"` // opaque JSON

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
