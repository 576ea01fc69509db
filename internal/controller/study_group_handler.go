package controller

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/Freeeeeet/studygroups/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StudyGroups операции изменения состояния пула
type StudyGroups interface {
	OptIn(ctx context.Context, req service.OptInRequest) (*model.StatusResult, error)
	OptOut(ctx context.Context, courseID, studentID string) (*model.StatusResult, error)
	Clear(ctx context.Context, courseID, studentID string) (*model.StatusResult, error)
}

type StatusReader interface {
	Status(ctx context.Context, courseID, studentID string) (*model.StatusResult, error)
}

type StudyGroupHandler struct {
	groups StudyGroups
	status StatusReader
	logger *zap.Logger
}

func NewStudyGroupHandler(groups StudyGroups, status StatusReader, logger *zap.Logger) *StudyGroupHandler {
	return &StudyGroupHandler{
		groups: groups,
		status: status,
		logger: logger,
	}
}

type optInRequest struct {
	StudentID    string   `json:"studentId"`
	ConceptIDs   []string `json:"conceptIds"`
	SkipMatching bool     `json:"skipMatching"`
}

type studentRequest struct {
	StudentID string `json:"studentId"`
}

// POST /api/courses/:courseId/study-groups/opt-in
func (h *StudyGroupHandler) OptIn(c *gin.Context) {
	var req optInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.groups.OptIn(c.Request.Context(), service.OptInRequest{
		CourseID:     c.Param("courseId"),
		StudentID:    req.StudentID,
		ConceptIDs:   req.ConceptIDs,
		SkipMatching: req.SkipMatching,
	})
	if err != nil {
		respondServiceError(c, h.logger, "opt_in_failed", err)
		return
	}
	respondOK(c, result)
}

// POST /api/courses/:courseId/study-groups/opt-out
func (h *StudyGroupHandler) OptOut(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.groups.OptOut(c.Request.Context(), c.Param("courseId"), req.StudentID)
	if err != nil {
		respondServiceError(c, h.logger, "opt_out_failed", err)
		return
	}
	respondOK(c, result)
}

// POST /api/courses/:courseId/study-groups/clear
func (h *StudyGroupHandler) Clear(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.groups.Clear(c.Request.Context(), c.Param("courseId"), req.StudentID)
	if err != nil {
		respondServiceError(c, h.logger, "clear_failed", err)
		return
	}
	respondOK(c, result)
}

// GET /api/courses/:courseId/study-groups/status?studentId=
func (h *StudyGroupHandler) Status(c *gin.Context) {
	result, err := h.status.Status(c.Request.Context(), c.Param("courseId"), c.Query("studentId"))
	if err != nil {
		respondServiceError(c, h.logger, "get_status_failed", err)
		return
	}
	respondOK(c, result)
}
