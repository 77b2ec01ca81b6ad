package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/server/models"
)

type planRequest struct {
	Name             string          `json:"name" binding:"required"`
	Description      string          `json:"description"`
	DifficultyLevel  string          `json:"difficulty_level" binding:"required,oneof=beginner intermediate advanced"`
	DurationDays     int             `json:"duration_days" binding:"required,min=1"`
	ExercisesPerWeek int             `json:"exercises_per_week"`
	PlanData         json.RawMessage `json:"plan_data" binding:"required"`
	IsActive         bool            `json:"is_active"`
	IsPublic         bool            `json:"is_public"`
}

type planResponse struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	Description            string          `json:"description,omitempty"`
	DifficultyLevel        string          `json:"difficulty_level"`
	DurationDays           int             `json:"duration_days"`
	ExercisesPerWeek       int             `json:"exercises_per_week"`
	PlanData               json.RawMessage `json:"plan_data"`
	IsActive               bool            `json:"is_active"`
	IsPublic               bool            `json:"is_public"`
	TotalCompletedSessions int             `json:"total_completed_sessions"`
	CompletionPercent      float64         `json:"completion_percent"`
}

func toPlanResponse(p *models.WorkoutPlan) planResponse {
	return planResponse{
		ID:                     p.ID,
		Name:                   p.Name,
		Description:            p.Description,
		DifficultyLevel:        p.DifficultyLevel,
		DurationDays:           p.DurationDays,
		ExercisesPerWeek:       p.ExercisesPerWeek,
		PlanData:               p.PlanData,
		IsActive:               p.IsActive,
		IsPublic:               p.IsPublic,
		TotalCompletedSessions: p.TotalCompletedSessions,
		CompletionPercent:      p.CompletionPercent,
	}
}

type achievementResponse struct {
	ID              string `json:"id"`
	AchievementType string `json:"achievement_type"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	IconURL         string `json:"icon_url,omitempty"`
	EarnedAt        string `json:"earned_at"`
}

type dailyStatsResponse struct {
	Date                 string  `json:"date"`
	TotalWorkouts        int     `json:"total_workouts"`
	TotalReps            int     `json:"total_reps"`
	TotalDurationSeconds int     `json:"total_duration_seconds"`
	AvgFormScore         float64 `json:"avg_form_score"`
}

func (h *Handler) listAchievements(c *gin.Context) {
	list, err := h.progress.ListAchievements(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]achievementResponse, 0, len(list))
	for _, a := range list {
		out = append(out, achievementResponse{
			ID:              a.ID,
			AchievementType: a.AchievementType,
			Title:           a.Title,
			Description:     a.Description,
			IconURL:         a.IconURL,
			EarnedAt:        a.EarnedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createPlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.ErrInvalidInput)
		return
	}

	plan, err := h.progress.CreatePlan(c.Request.Context(), &models.WorkoutPlan{
		UserID:           currentUserID(c),
		Name:             req.Name,
		Description:      req.Description,
		DifficultyLevel:  req.DifficultyLevel,
		DurationDays:     req.DurationDays,
		ExercisesPerWeek: req.ExercisesPerWeek,
		PlanData:         req.PlanData,
		IsActive:         req.IsActive,
		IsPublic:         req.IsPublic,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPlanResponse(plan))
}

func (h *Handler) getPlan(c *gin.Context) {
	plan, err := h.progress.GetPlan(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlanResponse(plan))
}

func (h *Handler) listPlans(c *gin.Context) {
	list, err := h.progress.ListPlans(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]planResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPlanResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) updatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.ErrInvalidInput)
		return
	}

	plan := &models.WorkoutPlan{
		ID:               c.Param("id"),
		UserID:           currentUserID(c),
		Name:             req.Name,
		Description:      req.Description,
		DifficultyLevel:  req.DifficultyLevel,
		DurationDays:     req.DurationDays,
		ExercisesPerWeek: req.ExercisesPerWeek,
		PlanData:         req.PlanData,
		IsActive:         req.IsActive,
		IsPublic:         req.IsPublic,
	}
	if err := h.progress.UpdatePlan(c.Request.Context(), plan); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPlanResponse(plan))
}

func (h *Handler) deletePlan(c *gin.Context) {
	if err := h.progress.DeletePlan(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "plan deleted"})
}

func (h *Handler) dailyStats(c *gin.Context) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, common.ErrInvalidInput)
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, common.ErrInvalidInput)
			return
		}
		to = t
	}

	list, err := h.progress.DailyStats(c.Request.Context(), currentUserID(c), from, to)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dailyStatsResponse, 0, len(list))
	for _, d := range list {
		out = append(out, dailyStatsResponse{
			Date:                 d.Date.Format("2006-01-02"),
			TotalWorkouts:        d.TotalWorkouts,
			TotalReps:            d.TotalReps,
			TotalDurationSeconds: d.TotalDurationSeconds,
			AvgFormScore:         d.AvgFormScore,
		})
	}
	c.JSON(http.StatusOK, out)
}
