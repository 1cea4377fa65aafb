package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/service"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
	"github.com/tutorhub/backoffice-api/pkg/response"
)

// LessonHandler wires HTTP endpoints to the lesson service.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler creates a new handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// CancelLessonRequest is the payload for the cancel shortcut endpoint.
type CancelLessonRequest struct {
	CancellationReason string `json:"cancellation_reason" binding:"required"`
}

// List godoc
// @Summary List lessons
// @Tags Lessons
// @Produce json
// @Param status query string false "Filter by status"
// @Param student_id query string false "Filter by student"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /manager/lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	filter := models.LessonFilter{
		StudentID: c.Query("student_id"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		st := models.LessonStatus(status)
		filter.Status = &st
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	lessons, pagination, err := h.service.List(c.Request.Context(), filter, lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lessons, pagination)
}

// ListOwn returns the authenticated student's own lessons.
func (h *LessonHandler) ListOwn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.LessonFilter{StudentID: claims.UserID}
	if status := c.Query("status"); status != "" {
		st := models.LessonStatus(status)
		filter.Status = &st
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	lessons, pagination, err := h.service.List(c.Request.Context(), filter, lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Get godoc
// @Summary Get a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.service.Get(c.Request.Context(), c.Param("id"), lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Create godoc
// @Summary Schedule a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body service.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /manager/lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req service.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.service.Create(c.Request.Context(), req, lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, lesson)
}

// Update godoc
// @Summary Update a lesson
// @Description Patch lesson fields; status transitions drive the balance
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.UpdateLessonRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/lessons/{id} [patch]
func (h *LessonHandler) Update(c *gin.Context) {
	var req service.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.service.Update(c.Request.Context(), c.Param("id"), req, lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lesson, nil)
}

// Cancel godoc
// @Summary Cancel a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body handler.CancelLessonRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/lessons/{id}/cancel [post]
func (h *LessonHandler) Cancel(c *gin.Context) {
	var req CancelLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
		return
	}

	cancelled := models.LessonCancelled
	update := service.UpdateLessonRequest{
		Status:             &cancelled,
		CancellationReason: &req.CancellationReason,
	}
	lesson, err := h.service.Update(c.Request.Context(), c.Param("id"), update, lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lesson, nil)
}

// Debit godoc
// @Summary Debit a lesson from the balance
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.DebitLessonRequest true "Debit options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/lessons/{id}/debit [post]
func (h *LessonHandler) Debit(c *gin.Context) {
	var req service.DebitLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid debit payload"))
		return
	}

	lesson, err := h.service.Debit(c.Request.Context(), c.Param("id"), req, lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lesson, nil)
}

// Students godoc
// @Summary List a teacher's students
// @Tags Lessons
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teacher/students [get]
func (h *LessonHandler) Students(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	students, err := h.service.Students(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, nil)
}

// StudentLessons godoc
// @Summary List one student's lessons
// @Tags Lessons
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /teacher/students/{id}/lessons [get]
func (h *LessonHandler) StudentLessons(c *gin.Context) {
	filter := models.LessonFilter{StudentID: c.Param("id")}
	if status := c.Query("status"); status != "" {
		st := models.LessonStatus(status)
		filter.Status = &st
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	lessons, pagination, err := h.service.List(c.Request.Context(), filter, lessonActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lessons, pagination)
}
