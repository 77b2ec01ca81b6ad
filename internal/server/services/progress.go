// This file implements ProgressService: achievements, workout plans and the
// daily statistics charts are read and written here.

package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/server/models"
	"github.com/fittrack/server/internal/server/repositories/repomanager"
)

type ProgressService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewProgressService(db *sql.DB, m repomanager.RepositoryManager) *ProgressService {
	return &ProgressService{db: db, repomanager: m}
}

func (s *ProgressService) ListAchievements(ctx context.Context, userID string) ([]*models.Achievement, error) {
	repo := s.repomanager.Progress(s.db)

	list, err := repo.ListAchievements(ctx, userID)
	if err != nil {
		return nil, common.StoreError(err)
	}
	return list, nil
}

func (s *ProgressService) CreatePlan(ctx context.Context, plan *models.WorkoutPlan) (*models.WorkoutPlan, error) {
	if plan.Name == "" || plan.DurationDays <= 0 || len(plan.PlanData) == 0 {
		return nil, common.ErrInvalidInput
	}
	if plan.ExercisesPerWeek <= 0 {
		plan.ExercisesPerWeek = 3
	}

	repo := s.repomanager.Progress(s.db)
	if err := repo.CreatePlan(ctx, plan); err != nil {
		return nil, common.StoreError(err)
	}
	return plan, nil
}

// GetPlan returns a plan readable by the user: their own or a public one.
func (s *ProgressService) GetPlan(ctx context.Context, userID, planID string) (*models.WorkoutPlan, error) {
	repo := s.repomanager.Progress(s.db)

	plan, err := repo.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError(err)
	}
	if plan.UserID != userID && !plan.IsPublic {
		return nil, common.ErrNotFound
	}
	return plan, nil
}

func (s *ProgressService) ListPlans(ctx context.Context, userID string) ([]*models.WorkoutPlan, error) {
	repo := s.repomanager.Progress(s.db)

	list, err := repo.ListPlans(ctx, userID)
	if err != nil {
		return nil, common.StoreError(err)
	}
	return list, nil
}

func (s *ProgressService) UpdatePlan(ctx context.Context, plan *models.WorkoutPlan) error {
	repo := s.repomanager.Progress(s.db)

	err := repo.UpdatePlan(ctx, plan)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.StoreError(err)
	}
	return nil
}

func (s *ProgressService) DeletePlan(ctx context.Context, userID, planID string) error {
	repo := s.repomanager.Progress(s.db)

	err := repo.DeletePlan(ctx, planID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.StoreError(err)
	}
	return nil
}

// DailyStats returns per-day aggregates for the chart range. The default
// window is the last 30 days.
func (s *ProgressService) DailyStats(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyStats, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, common.ErrInvalidInput
	}

	repo := s.repomanager.Progress(s.db)
	list, err := repo.ListDailyStats(ctx, userID, from, to)
	if err != nil {
		return nil, common.StoreError(err)
	}
	return list, nil
}
