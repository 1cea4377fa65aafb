package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/service"
	"github.com/tutorhub/backoffice-api/pkg/response"
)

// AuditHandler wires HTTP endpoints to the audit service.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param action query string false "Filter by action tag"
// @Param actor_id query string false "Filter by actor"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := auditFilterFromQuery(c)

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, pagination)
}

// Export godoc
// @Summary Export audit entries as CSV
// @Tags Audit
// @Produce text/csv
// @Param action query string false "Filter by action tag"
// @Param actor_id query string false "Filter by actor"
// @Success 200 {file} binary
// @Router /admin/audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	filter := auditFilterFromQuery(c)

	data, err := h.service.ExportCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := "audit-" + time.Now().UTC().Format("20060102-150405") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

func auditFilterFromQuery(c *gin.Context) models.AuditFilter {
	filter := models.AuditFilter{
		Action:    c.Query("action"),
		ActorID:   c.Query("actor_id"),
		Search:    c.Query("search"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	return filter
}
