package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/backoffice-api/internal/service"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
	"github.com/tutorhub/backoffice-api/pkg/response"
)

// BalanceHandler wires HTTP endpoints to the balance service.
type BalanceHandler struct {
	service   *service.BalanceService
	dashboard *service.DashboardService
}

// NewBalanceHandler creates a new handler.
func NewBalanceHandler(svc *service.BalanceService, dashboard *service.DashboardService) *BalanceHandler {
	return &BalanceHandler{service: svc, dashboard: dashboard}
}

// List godoc
// @Summary List lesson balances
// @Tags Balances
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /manager/balances [get]
func (h *BalanceHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	balances, pagination, err := h.service.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, balances, pagination)
}

// Get godoc
// @Summary Get a student's balance
// @Tags Balances
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /manager/students/{id}/balance [get]
func (h *BalanceHandler) Get(c *gin.Context) {
	balance, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// GetOwn returns the authenticated student's balance.
func (h *BalanceHandler) GetOwn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	balance, err := h.service.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Adjust godoc
// @Summary Set or shift a student's balance
// @Description Absolute set via lessons_available or relative change via delta
// @Tags Balances
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.AdjustBalanceRequest true "Adjustment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /manager/students/{id}/balance [patch]
func (h *BalanceHandler) Adjust(c *gin.Context) {
	var req service.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid balance payload"))
		return
	}

	studentID := c.Param("id")
	balance, err := h.service.Adjust(c.Request.Context(), studentID, req, auditMetaFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.dashboard != nil {
		h.dashboard.InvalidateStudent(c.Request.Context(), studentID)
	}

	response.JSON(c, http.StatusOK, balance, nil)
}
