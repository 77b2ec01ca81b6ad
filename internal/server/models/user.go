// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the account record. PasswordHash is a bcrypt digest and must never
// be logged or serialized to a response.
type User struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Username     string `db:"username"`
	FullName     string `db:"full_name"`
	PasswordHash string `db:"hashed_password"`

	IsActive   bool `db:"is_active"`
	IsVerified bool `db:"is_verified"`

	// Profile and preferences.
	Age             int     `db:"age"`
	Gender          string  `db:"gender"`
	HeightCm        float64 `db:"height_cm"`
	WeightKg        float64 `db:"weight_kg"`
	Language        string  `db:"language"`
	Timezone        string  `db:"timezone"`
	DifficultyLevel string  `db:"difficulty_level"`
	Role            string  `db:"role"`

	// Brute-force lockout state.
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`

	// Aggregated workout metrics, recomputed on session completion.
	TotalWorkouts     int     `db:"total_workouts"`
	TotalReps         int     `db:"total_reps"`
	AvgFormScore      float64 `db:"avg_form_score"`
	CurrentStreakDays int     `db:"current_streak_days"`
	LongestStreakDays int     `db:"longest_streak_days"`

	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	LastLogin *time.Time `db:"last_login"`
}
