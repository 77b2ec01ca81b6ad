package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/server/models"
)

type startSessionRequest struct {
	ExerciseType string          `json:"exercise_type" binding:"required"`
	Settings     json.RawMessage `json:"settings"`
	Notes        string          `json:"notes"`
}

type frameRequest struct {
	FrameID          int       `json:"frame_id"`
	Timestamp        time.Time `json:"timestamp"`
	Phase            string    `json:"phase"`
	RepCount         int       `json:"rep_count"`
	KneeAngle        float64   `json:"knee_angle"`
	HipAngle         *float64  `json:"hip_angle"`
	BackAngle        *float64  `json:"back_angle"`
	FormScore        float64   `json:"form_score"`
	Confidence       float64   `json:"confidence"`
	Errors           []string  `json:"errors"`
	Keypoints        json.RawMessage `json:"keypoints"`
	InferenceTimeMs  *float64  `json:"inference_time_ms"`
	ProcessingTimeMs *float64  `json:"processing_time_ms"`
}

type appendFramesRequest struct {
	Frames []frameRequest `json:"frames" binding:"required"`
}

type sessionResponse struct {
	ID              string   `json:"id"`
	ExerciseType    string   `json:"exercise_type"`
	Status          string   `json:"status"`
	StartedAt       string   `json:"started_at"`
	EndedAt         string   `json:"ended_at,omitempty"`
	DurationSeconds int      `json:"duration_seconds"`
	TotalReps       int      `json:"total_reps"`
	AvgFormScore    float64  `json:"avg_form_score"`
	MaxFormScore    float64  `json:"max_form_score"`
	MinFormScore    float64  `json:"min_form_score"`
	CommonErrors    []string `json:"common_errors"`
	Notes           string   `json:"notes,omitempty"`
	HasArchive      bool     `json:"has_archive"`
}

func toSessionResponse(s *models.ExerciseSession) sessionResponse {
	resp := sessionResponse{
		ID:              s.ID,
		ExerciseType:    s.ExerciseType,
		Status:          s.Status,
		StartedAt:       s.StartedAt.Format(time.RFC3339),
		DurationSeconds: s.DurationSeconds,
		TotalReps:       s.TotalReps,
		AvgFormScore:    s.AvgFormScore,
		MaxFormScore:    s.MaxFormScore,
		MinFormScore:    s.MinFormScore,
		CommonErrors:    s.CommonErrors,
		Notes:           s.Notes,
		HasArchive:      s.ArchiveKey != "",
	}
	if resp.CommonErrors == nil {
		resp.CommonErrors = []string{}
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) startSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.ErrInvalidInput)
		return
	}

	session, err := h.sessions.Start(c.Request.Context(), currentUserID(c), req.ExerciseType, req.Settings, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) getSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *Handler) listSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.sessions.List(c.Request.Context(), currentUserID(c), c.Query("exercise_type"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) appendFrames(c *gin.Context) {
	var req appendFramesRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Frames) == 0 {
		writeError(c, common.ErrInvalidInput)
		return
	}

	frames := make([]*models.FrameAnalysis, 0, len(req.Frames))
	for _, f := range req.Frames {
		ts := f.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		frames = append(frames, &models.FrameAnalysis{
			FrameID:          f.FrameID,
			Timestamp:        ts,
			Phase:            f.Phase,
			RepCount:         f.RepCount,
			KneeAngle:        f.KneeAngle,
			HipAngle:         f.HipAngle,
			BackAngle:        f.BackAngle,
			FormScore:        f.FormScore,
			Confidence:       f.Confidence,
			Errors:           f.Errors,
			Keypoints:        f.Keypoints,
			InferenceTimeMs:  f.InferenceTimeMs,
			ProcessingTimeMs: f.ProcessingTimeMs,
		})
	}

	n, err := h.sessions.AppendFrames(c.Request.Context(), currentUserID(c), c.Param("id"), frames)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"stored": n})
}

func (h *Handler) listFrames(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	frames, err := h.sessions.ListFrames(c.Request.Context(), currentUserID(c), c.Param("id"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"frames": frames, "count": len(frames)})
}

func (h *Handler) completeSession(c *gin.Context) {
	session, uploadURL, err := h.sessions.Complete(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"session": toSessionResponse(session)}
	if uploadURL != "" {
		resp["archive_upload_url"] = uploadURL
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) cancelSession(c *gin.Context) {
	if err := h.sessions.Cancel(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "session cancelled"})
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "session deleted"})
}

type confirmArchiveRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *Handler) confirmArchiveUpload(c *gin.Context) {
	var req confirmArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.ErrInvalidInput)
		return
	}

	if err := h.sessions.ConfirmArchiveUpload(c.Request.Context(), currentUserID(c), c.Param("id"), req.Key); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "archive recorded"})
}

func (h *Handler) sessionArchiveURL(c *gin.Context) {
	url, err := h.sessions.GetArchiveURL(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
