package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
	"github.com/tutorhub/backoffice-api/pkg/export"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.PaymentView, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentView, int, error)
	Confirm(ctx context.Context, paymentID string, lessonsToAdd int, actor repository.AuditActor) (*models.PaymentConfirmResult, error)
}

// CreatePaymentRequest is the self-reported payment payload.
type CreatePaymentRequest struct {
	StudentID   string `json:"student_id"`
	Amount      string `json:"amount" validate:"required"`
	PackageName string `json:"package_name" validate:"required"`
}

// ConfirmPaymentRequest credits the student's balance on confirmation.
type ConfirmPaymentRequest struct {
	LessonsToAdd int `json:"lessons_to_add" validate:"required,gt=0"`
}

// PaymentService provides payment recording and confirmation use cases.
type PaymentService struct {
	repo      paymentRepository
	audit     auditRecorder
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewPaymentService constructs a PaymentService instance. A nil metrics
// service disables instrumentation.
func NewPaymentService(repo paymentRepository, audit auditRecorder, pdf *export.PDFExporter, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &PaymentService{repo: repo, audit: audit, pdf: pdf, validator: validate, logger: logger, metrics: metrics}
}

// List returns payments matching the filter with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentView, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentView, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Create records an unconfirmed payment for the given student.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest, meta AuditMeta) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	payment := &models.Payment{
		StudentID:   req.StudentID,
		Amount:      req.Amount,
		PackageName: req.PackageName,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}

	s.recordAudit(ctx, meta, models.AuditActionCreatePayment, payment.ID)
	return payment, nil
}

// Confirm marks a payment confirmed and credits the balance. A second
// confirmation fails with a state conflict; the credit applies exactly once.
func (s *PaymentService) Confirm(ctx context.Context, paymentID string, req ConfirmPaymentRequest, meta AuditMeta) (*models.PaymentConfirmResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "lessons_to_add must be a positive integer")
	}

	result, err := s.repo.Confirm(ctx, paymentID, req.LessonsToAdd, meta.actor())
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		case errors.Is(err, repository.ErrAlreadyConfirmed):
			return nil, appErrors.Clone(appErrors.ErrStateConflict, "payment is already confirmed")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm payment")
		}
	}
	if s.metrics != nil {
		s.metrics.RecordLedgerMutation("credit")
	}
	return result, nil
}

// Receipt renders a PDF receipt for a confirmed payment.
func (s *PaymentService) Receipt(ctx context.Context, paymentID string) ([]byte, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Confirmed {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "receipt is only available for confirmed payments")
	}

	fields := []export.ReceiptField{
		{Label: "Receipt No", Value: payment.ID},
		{Label: "Student", Value: payment.StudentEmail},
		{Label: "Package", Value: payment.PackageName},
		{Label: "Amount", Value: payment.Amount},
		{Label: "Paid At", Value: payment.PaidAt.Format("2006-01-02 15:04")},
		{Label: "Status", Value: "CONFIRMED"},
	}
	data, err := s.pdf.RenderReceipt("Payment Receipt", fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}

func (s *PaymentService) recordAudit(ctx context.Context, meta AuditMeta, action, paymentID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		ActorID:   meta.ActorID,
		Action:    action,
		Meta:      []byte(fmt.Sprintf(`{"payment_id":%q}`, paymentID)),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
	}
}
