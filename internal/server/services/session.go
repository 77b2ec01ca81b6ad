// This file implements SessionService: the exercise-session lifecycle from
// start through per-frame analysis batches to completion, where aggregate
// metrics, daily stats, profile counters and milestone achievements are
// written in one transaction.

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/dbx"
	"github.com/fittrack/server/internal/logging"
	sc "github.com/fittrack/server/internal/server/config"
	"github.com/fittrack/server/internal/server/models"
	"github.com/fittrack/server/internal/server/repositories/repomanager"
	"github.com/fittrack/server/internal/server/repositories/sessions"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Notifier delivers a push notification to all active devices of a user.
// Delivery is best-effort.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, title, body string, data map[string]string) error
}

// Workout-count milestones awarded on session completion.
var workoutMilestones = []struct {
	Count int
	Type  string
	Title string
}{
	{1, "first_workout", "First Workout"},
	{10, "10_workouts", "10 Workouts"},
	{50, "50_workouts", "50 Workouts"},
	{100, "100_workouts", "100 Workouts"},
}

type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	notifier    Notifier
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger, notifier Notifier) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		config:      cfg,
		logger:      logger,
		notifier:    notifier,
	}
}

// GetRandomStorageKey builds a date-partitioned object key for a session
// recording archive.
func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("sessions/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *SessionService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// Start opens a new active session for the user.
func (s *SessionService) Start(ctx context.Context, userID, exerciseType string, settings []byte, notes string) (*models.ExerciseSession, error) {
	session := &models.ExerciseSession{
		UserID:       userID,
		ExerciseType: exerciseType,
		Status:       models.SessionStatusActive,
		Settings:     settings,
		Notes:        notes,
	}

	repo := s.repomanager.Sessions(s.db)
	if err := repo.Create(ctx, session); err != nil {
		return nil, common.StoreError(err)
	}
	return session, nil
}

// Get returns a session owned by the user.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*models.ExerciseSession, error) {
	repo := s.repomanager.Sessions(s.db)

	session, err := repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError(err)
	}
	// Hide other users' sessions entirely.
	if session.UserID != userID {
		return nil, common.ErrNotFound
	}
	return session, nil
}

func (s *SessionService) List(ctx context.Context, userID, exerciseType string, limit, offset int) ([]*models.ExerciseSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	repo := s.repomanager.Sessions(s.db)
	list, err := repo.ListByUser(ctx, userID, exerciseType, limit, offset)
	if err != nil {
		return nil, common.StoreError(err)
	}
	return list, nil
}

// AppendFrames stores a batch of frame-analysis results for an active
// session and returns the number of frames stored.
func (s *SessionService) AppendFrames(ctx context.Context, userID, sessionID string, frames []*models.FrameAnalysis) (int, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return 0, err
	}
	if session.Status != models.SessionStatusActive && session.Status != models.SessionStatusPaused {
		return 0, common.ErrNotFound
	}

	repo := s.repomanager.Sessions(s.db)
	n, err := repo.InsertFrames(ctx, sessionID, frames)
	if err != nil {
		return n, common.StoreError(err)
	}
	return n, nil
}

func (s *SessionService) ListFrames(ctx context.Context, userID, sessionID string, limit, offset int) ([]*models.FrameAnalysis, error) {
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	repo := s.repomanager.Sessions(s.db)
	frames, err := repo.ListFrames(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, common.StoreError(err)
	}
	return frames, nil
}

// Complete closes an active session. Aggregates are computed server-side
// from the stored frames; the session row, the user's profile counters and
// the daily stats row are updated in one transaction. The returned URL is a
// presigned PUT the client can use to upload its session recording archive;
// it is empty when object storage is not configured.
func (s *SessionService) Complete(ctx context.Context, userID, sessionID string) (*models.ExerciseSession, string, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, "", err
	}
	if session.Status != models.SessionStatusActive && session.Status != models.SessionStatusPaused {
		return nil, "", common.ErrNotFound
	}

	agg, err := s.repomanager.Sessions(s.db).AggregateFrames(ctx, sessionID)
	if err != nil {
		return nil, "", common.StoreError(err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, "", common.StoreError(err)
	}

	endedAt := time.Now()
	duration := int(endedAt.Sub(session.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	totalWorkouts := user.TotalWorkouts + 1
	totalReps := user.TotalReps + agg.TotalReps
	avgFormScore := (user.AvgFormScore*float64(user.TotalWorkouts) + agg.AvgFormScore) / float64(totalWorkouts)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Sessions(tx).Complete(ctx, sessionID, models.SessionStatusCompleted, endedAt, duration, agg); err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).UpdateWorkoutMetrics(ctx, userID, totalWorkouts, totalReps, avgFormScore); err != nil {
			return err
		}
		return s.repomanager.Progress(tx).UpsertDailyStats(ctx, userID, endedAt, agg.TotalReps, duration, agg.AvgFormScore)
	})
	if err != nil {
		return nil, "", common.StoreError(err)
	}

	session.Status = models.SessionStatusCompleted
	session.EndedAt = &endedAt
	session.DurationSeconds = duration
	session.TotalReps = agg.TotalReps
	session.AvgFormScore = agg.AvgFormScore
	session.MaxFormScore = agg.MaxFormScore
	session.MinFormScore = agg.MinFormScore
	session.CommonErrors = agg.CommonErrors

	s.awardMilestones(ctx, userID, totalWorkouts)

	uploadURL := ""
	if s.config.S3BaseEndpoint != "" {
		key, url, err := s.presignArchiveUpload(ctx, sessionID)
		if err != nil {
			// The workout result is already committed; losing the archive
			// upload slot is acceptable.
			s.logger.Warn(ctx, "archive upload presign failed", "session_id", sessionID, "error", err)
		} else {
			uploadURL = url
			session.ArchiveKey = key
		}
	}

	return session, uploadURL, nil
}

// Cancel closes a session without folding it into stats or achievements.
func (s *SessionService) Cancel(ctx context.Context, userID, sessionID string) error {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionStatusActive && session.Status != models.SessionStatusPaused {
		return common.ErrNotFound
	}

	endedAt := time.Now()
	duration := int(endedAt.Sub(session.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	repo := s.repomanager.Sessions(s.db)
	err = repo.Complete(ctx, sessionID, models.SessionStatusCancelled, endedAt, duration, &sessions.Aggregates{CommonErrors: []string{}})
	if err != nil {
		return common.StoreError(err)
	}
	return nil
}

// Delete removes a session and its stored frames. The frames are deleted
// explicitly in the same transaction rather than left to the schema's
// cascade.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sessions(tx)
		if err := repo.DeleteFrames(ctx, sessionID); err != nil {
			return err
		}
		return repo.Delete(ctx, sessionID, userID)
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.StoreError(err)
	}
	return nil
}

func (s *SessionService) awardMilestones(ctx context.Context, userID string, totalWorkouts int) {
	repo := s.repomanager.Progress(s.db)

	for _, m := range workoutMilestones {
		if totalWorkouts != m.Count {
			continue
		}
		awarded, err := repo.AwardAchievement(ctx, &models.Achievement{
			UserID:          userID,
			AchievementType: m.Type,
			Title:           m.Title,
			Description:     fmt.Sprintf("Completed %d workouts", m.Count),
		})
		if err != nil {
			s.logger.Warn(ctx, "achievement award failed", "user_id", userID, "type", m.Type, "error", err)
			continue
		}
		if awarded && s.notifier != nil {
			err := s.notifier.NotifyUser(ctx, userID, "Achievement unlocked", m.Title,
				map[string]string{"achievement_type": m.Type})
			if err != nil {
				s.logger.Warn(ctx, "achievement notification failed", "user_id", userID, "error", err)
			}
		}
	}
}

func (s *SessionService) presignArchiveUpload(ctx context.Context, sessionID string) (string, string, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := GetRandomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	if err := s.repomanager.Sessions(s.db).SetArchiveKey(ctx, sessionID, key); err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// ConfirmArchiveUpload records a client-supplied archive key after the
// upload finished, for sessions completed while storage was unavailable.
func (s *SessionService) ConfirmArchiveUpload(ctx context.Context, userID, sessionID, key string) error {
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.repomanager.Sessions(s.db).SetArchiveKey(ctx, sessionID, key); err != nil {
		return common.StoreError(err)
	}
	return nil
}

// GetArchiveURL returns a presigned GET for the stored session archive.
func (s *SessionService) GetArchiveURL(ctx context.Context, userID, sessionID string) (string, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	if session.ArchiveKey == "" {
		return "", common.ErrNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", common.ErrInternal
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &session.ArchiveKey,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", common.ErrInternal
	}

	return req.URL, nil
}
