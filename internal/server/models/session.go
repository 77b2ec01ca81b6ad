package models

import "time"

// Exercise session lifecycle states.
const (
	SessionStatusActive    = "active"
	SessionStatusPaused    = "paused"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

// ExerciseSession tracks one workout: created when the user starts an
// exercise, closed when they finish or cancel. Aggregate metrics are
// computed server-side from the stored frames on completion.
type ExerciseSession struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	ExerciseType string `db:"exercise_type"`
	Status       string `db:"status"`

	StartedAt       time.Time  `db:"started_at"`
	EndedAt         *time.Time `db:"ended_at"`
	DurationSeconds int        `db:"duration_seconds"`

	TotalReps    int     `db:"total_reps"`
	AvgFormScore float64 `db:"avg_form_score"`
	MaxFormScore float64 `db:"max_form_score"`
	MinFormScore float64 `db:"min_form_score"`

	CommonErrors []string `db:"common_errors"`
	Settings     []byte   `db:"settings"` // opaque JSON
	Notes        string   `db:"notes"`

	// ArchiveKey is the object-storage key of the frame archive exported
	// on completion; empty until the export has run.
	ArchiveKey string `db:"archive_key"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FrameAnalysis is one per-frame pose-analysis result. The analysis values
// are external inputs; the server stores them as given.
type FrameAnalysis struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
	FrameID   int    `db:"frame_id"`

	Timestamp time.Time `db:"timestamp"`

	Phase    string `db:"phase"`
	RepCount int    `db:"rep_count"`

	KneeAngle float64  `db:"knee_angle"`
	HipAngle  *float64 `db:"hip_angle"`
	BackAngle *float64 `db:"back_angle"`

	FormScore  float64 `db:"form_score"` // 0-100
	Confidence float64 `db:"confidence"` // 0-1

	Errors    []string `db:"errors"`
	Keypoints []byte   `db:"keypoints"` // opaque JSON

	InferenceTimeMs  *float64 `db:"inference_time_ms"`
	ProcessingTimeMs *float64 `db:"processing_time_ms"`

	CreatedAt time.Time `db:"created_at"`
}
