package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/models"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
	"github.com/tutorhub/backoffice-api/pkg/export"
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	repo   auditRepository
	csv    *export.CSVExporter
	logger *zap.Logger
}

// NewAuditService constructs an AuditService instance.
func NewAuditService(repo auditRepository, csv *export.CSVExporter, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &AuditService{repo: repo, csv: csv, logger: logger}
}

// List returns audit entries with pagination metadata.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return entries, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ExportCSV renders the filtered trail as a CSV document.
func (s *AuditService) ExportCSV(ctx context.Context, filter models.AuditFilter) ([]byte, error) {
	filter.Page = 1
	if filter.PageSize <= 0 {
		filter.PageSize = 200
	}
	entries, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export audit logs")
	}

	dataset := export.Dataset{
		Headers: []string{"id", "actor_id", "action", "meta", "ip_address", "created_at"},
	}
	for _, entry := range entries {
		actor := ""
		if entry.ActorID != nil {
			actor = *entry.ActorID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":         entry.ID,
			"actor_id":   actor,
			"action":     entry.Action,
			"meta":       string(entry.Meta),
			"ip_address": entry.IPAddress,
			"created_at": entry.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}
