package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type mockRequestRepo struct {
	requests map[string]*models.ClientRequest
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*models.ClientRequest)}
}

func (m *mockRequestRepo) Create(_ context.Context, req *models.ClientRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.RequestSent
	m.requests[req.ID] = req
	return nil
}

func (m *mockRequestRepo) FindByID(_ context.Context, id string) (*models.ClientRequestView, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ClientRequestView{ID: req.ID, ClientID: req.ClientID, Comment: req.Comment, Status: req.Status}, nil
}

func (m *mockRequestRepo) List(_ context.Context, _ models.ClientRequestFilter) ([]models.ClientRequestView, int, error) {
	return nil, len(m.requests), nil
}

func (m *mockRequestRepo) Respond(_ context.Context, id, managerID string, _ repository.AuditActor) (*models.ClientRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if req.Status == models.RequestResponded {
		return nil, repository.ErrAlreadyResponded
	}
	now := time.Now().UTC()
	req.Status = models.RequestResponded
	req.ManagerID = &managerID
	req.RespondedAt = &now
	copied := *req
	return &copied, nil
}

func TestRequestServiceCreateForcesSent(t *testing.T) {
	repo := newMockRequestRepo()
	svc := NewRequestService(repo, nil, nil)

	ticket, err := svc.Create(context.Background(), "client-1", CreateClientRequest{Comment: "Please reschedule Friday"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestSent, ticket.Status)
	assert.Equal(t, "client-1", ticket.ClientID)
}

func TestRequestServiceCreateRejectsBlankComment(t *testing.T) {
	svc := NewRequestService(newMockRequestRepo(), nil, nil)

	_, err := svc.Create(context.Background(), "client-1", CreateClientRequest{Comment: "   "})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestRequestServiceRespondOnce(t *testing.T) {
	repo := newMockRequestRepo()
	svc := NewRequestService(repo, nil, nil)

	ticket, err := svc.Create(context.Background(), "client-1", CreateClientRequest{Comment: "Add a Saturday slot"})
	require.NoError(t, err)

	responded, err := svc.Respond(context.Background(), ticket.ID, "manager-1", AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RequestResponded, responded.Status)
	require.NotNil(t, responded.ManagerID)
	assert.Equal(t, "manager-1", *responded.ManagerID)

	_, err = svc.Respond(context.Background(), ticket.ID, "manager-2", AuditMeta{})
	assertAppError(t, err, appErrors.ErrStateConflict.Code)
}

func TestRequestServiceRespondUnknown(t *testing.T) {
	svc := NewRequestService(newMockRequestRepo(), nil, nil)

	_, err := svc.Respond(context.Background(), "missing", "manager-1", AuditMeta{})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}
