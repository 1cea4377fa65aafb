package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type balanceRepository interface {
	GetOrCreate(ctx context.Context, studentID string) (*models.LessonBalance, error)
	ListViews(ctx context.Context, page, pageSize int) ([]models.BalanceView, int, error)
	Adjust(ctx context.Context, adj repository.BalanceAdjustment) (*models.LessonBalance, error)
}

// AdjustBalanceRequest sets or shifts a student's balance. Exactly one of
// LessonsAvailable or Delta must be provided.
type AdjustBalanceRequest struct {
	LessonsAvailable *int `json:"lessons_available"`
	Delta            *int `json:"delta"`
}

// BalanceService provides ledger administration use cases.
type BalanceService struct {
	repo      balanceRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewBalanceService constructs a BalanceService instance. A nil metrics
// service disables instrumentation.
func NewBalanceService(repo balanceRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BalanceService{repo: repo, validator: validate, logger: logger, metrics: metrics}
}

// Get returns a student's balance, creating the zero row on first access.
func (s *BalanceService) Get(ctx context.Context, studentID string) (*models.LessonBalance, error) {
	balance, err := s.repo.GetOrCreate(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	return balance, nil
}

// List returns all balances with pagination metadata.
func (s *BalanceService) List(ctx context.Context, page, pageSize int) ([]models.BalanceView, *models.Pagination, error) {
	views, total, err := s.repo.ListViews(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list balances")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return views, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Adjust applies an absolute or relative balance change. An absolute value
// below zero is rejected; a relative change that would go negative is
// clamped to zero. A resulting positive balance promotes an applicant owner
// to the student role.
func (s *BalanceService) Adjust(ctx context.Context, studentID string, req AdjustBalanceRequest, meta AuditMeta) (*models.LessonBalance, error) {
	if req.LessonsAvailable == nil && req.Delta == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either lessons_available or delta is required")
	}
	if req.LessonsAvailable != nil && req.Delta != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lessons_available and delta are mutually exclusive")
	}
	if req.LessonsAvailable != nil && *req.LessonsAvailable < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lessons_available cannot be negative")
	}

	adj := repository.BalanceAdjustment{StudentID: studentID, Actor: meta.actor()}
	if req.LessonsAvailable != nil {
		adj.Absolute = req.LessonsAvailable
	} else {
		adj.Delta = *req.Delta
	}

	balance, err := s.repo.Adjust(ctx, adj)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust balance")
	}
	if s.metrics != nil {
		kind := "delta"
		if req.LessonsAvailable != nil {
			kind = "set"
		}
		s.metrics.RecordLedgerMutation(kind)
	}
	return balance, nil
}
