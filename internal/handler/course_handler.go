package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/backoffice-api/internal/service"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
	"github.com/tutorhub/backoffice-api/pkg/response"
)

// CourseHandler wires HTTP endpoints to the catalog service.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler creates a new handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// ListCourses godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /manager/courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.service.ListCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// GetCourse godoc
// @Summary Get a course
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/courses/{id} [get]
func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.service.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// CreateCourse godoc
// @Summary Create a course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /manager/courses [post]
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.service.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse godoc
// @Summary Update a course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/courses/{id} [put]
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.service.UpdateCourse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// DeleteCourse godoc
// @Summary Delete a course
// @Tags Catalog
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/courses/{id} [delete]
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	if err := h.service.DeleteCourse(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListModules godoc
// @Summary List a course's modules
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /manager/courses/{id}/modules [get]
func (h *CourseHandler) ListModules(c *gin.Context) {
	modules, err := h.service.ListModules(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modules, nil)
}

// CreateModule godoc
// @Summary Add a module to a course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.ModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /manager/courses/{id}/modules [post]
func (h *CourseHandler) CreateModule(c *gin.Context) {
	var req service.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid module payload"))
		return
	}

	module, err := h.service.CreateModule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// UpdateModule godoc
// @Summary Update a module
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body service.ModuleRequest true "Module payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/modules/{id} [put]
func (h *CourseHandler) UpdateModule(c *gin.Context) {
	var req service.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid module payload"))
		return
	}

	module, err := h.service.UpdateModule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// DeleteModule godoc
// @Summary Delete a module
// @Tags Catalog
// @Param id path string true "Module ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/modules/{id} [delete]
func (h *CourseHandler) DeleteModule(c *gin.Context) {
	if err := h.service.DeleteModule(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTopics godoc
// @Summary List a module's topics
// @Tags Catalog
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /manager/modules/{id}/topics [get]
func (h *CourseHandler) ListTopics(c *gin.Context) {
	topics, err := h.service.ListTopics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topics, nil)
}

// CreateTopic godoc
// @Summary Add a topic to a module
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body service.TopicRequest true "Topic payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /manager/modules/{id}/topics [post]
func (h *CourseHandler) CreateTopic(c *gin.Context) {
	var req service.TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid topic payload"))
		return
	}

	topic, err := h.service.CreateTopic(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// UpdateTopic godoc
// @Summary Update a topic
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body service.TopicRequest true "Topic payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/topics/{id} [put]
func (h *CourseHandler) UpdateTopic(c *gin.Context) {
	var req service.TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid topic payload"))
		return
	}

	topic, err := h.service.UpdateTopic(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// DeleteTopic godoc
// @Summary Delete a topic
// @Tags Catalog
// @Param id path string true "Topic ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/topics/{id} [delete]
func (h *CourseHandler) DeleteTopic(c *gin.Context) {
	if err := h.service.DeleteTopic(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
