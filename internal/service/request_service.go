package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type requestRepository interface {
	Create(ctx context.Context, req *models.ClientRequest) error
	FindByID(ctx context.Context, id string) (*models.ClientRequestView, error)
	List(ctx context.Context, filter models.ClientRequestFilter) ([]models.ClientRequestView, int, error)
	Respond(ctx context.Context, id, managerID string, actor repository.AuditActor) (*models.ClientRequest, error)
}

// CreateClientRequest is the inbound ticket payload.
type CreateClientRequest struct {
	Comment string `json:"comment" validate:"required"`
}

// RequestService provides the client-request inbox use cases.
type RequestService struct {
	repo      requestRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs a RequestService instance.
func NewRequestService(repo requestRepository, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{repo: repo, validator: validate, logger: logger}
}

// Create records a new SENT ticket from the given client.
func (s *RequestService) Create(ctx context.Context, clientID string, req CreateClientRequest) (*models.ClientRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if strings.TrimSpace(req.Comment) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment is required")
	}

	ticket := &models.ClientRequest{ClientID: clientID, Comment: req.Comment}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return ticket, nil
}

// List returns tickets matching the filter with pagination metadata.
func (s *RequestService) List(ctx context.Context, filter models.ClientRequestFilter) ([]models.ClientRequestView, *models.Pagination, error) {
	tickets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return tickets, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single ticket.
func (s *RequestService) Get(ctx context.Context, id string) (*models.ClientRequestView, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return ticket, nil
}

// Respond marks a ticket handled by the given manager. The transition is
// one-way; a second response fails with a state conflict.
func (s *RequestService) Respond(ctx context.Context, id, managerID string, meta AuditMeta) (*models.ClientRequest, error) {
	ticket, err := s.repo.Respond(ctx, id, managerID, meta.actor())
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		case errors.Is(err, repository.ErrAlreadyResponded):
			return nil, appErrors.Clone(appErrors.ErrStateConflict, "request is already responded")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to respond to request")
		}
	}
	return ticket, nil
}
