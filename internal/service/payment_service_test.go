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

type mockPaymentRepo struct {
	payments map[string]*models.Payment
	balances map[string]int
	roles    map[string]models.UserRole
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{
		payments: make(map[string]*models.Payment),
		balances: make(map[string]int),
		roles:    make(map[string]models.UserRole),
	}
}

func (m *mockPaymentRepo) add(payment *models.Payment) *models.Payment {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	m.payments[payment.ID] = payment
	return payment
}

func (m *mockPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	m.add(payment)
	return nil
}

func (m *mockPaymentRepo) FindByID(_ context.Context, id string) (*models.PaymentView, error) {
	payment, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.PaymentView{
		ID:           payment.ID,
		StudentID:    payment.StudentID,
		StudentEmail: payment.StudentID + "@tutorhub.io",
		Amount:       payment.Amount,
		PackageName:  payment.PackageName,
		Confirmed:    payment.Confirmed,
		PaidAt:       payment.PaidAt,
	}, nil
}

func (m *mockPaymentRepo) List(_ context.Context, _ models.PaymentFilter) ([]models.PaymentView, int, error) {
	return nil, len(m.payments), nil
}

func (m *mockPaymentRepo) Confirm(_ context.Context, paymentID string, lessonsToAdd int, _ repository.AuditActor) (*models.PaymentConfirmResult, error) {
	payment, ok := m.payments[paymentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if payment.Confirmed {
		return nil, repository.ErrAlreadyConfirmed
	}
	payment.Confirmed = true
	m.balances[payment.StudentID] += lessonsToAdd
	oldRole := m.roles[payment.StudentID]
	newRole := oldRole
	if m.balances[payment.StudentID] > 0 && oldRole == models.RoleApplicant {
		newRole = models.RoleStudent
		m.roles[payment.StudentID] = newRole
	}
	return &models.PaymentConfirmResult{
		PaymentID:    paymentID,
		StudentID:    payment.StudentID,
		LessonsAdded: lessonsToAdd,
		NewBalance:   m.balances[payment.StudentID],
		OldRole:      oldRole,
		NewRole:      newRole,
		RoleChanged:  newRole != oldRole,
	}, nil
}

func newTestPaymentService(repo *mockPaymentRepo) (*PaymentService, *mockAuditRecorder) {
	audit := &mockAuditRecorder{}
	return NewPaymentService(repo, audit, nil, nil, nil, nil), audit
}

func TestPaymentServiceConfirmPromotesApplicant(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.roles["applicant-1"] = models.RoleApplicant
	payment := repo.add(&models.Payment{StudentID: "applicant-1", Amount: "20000.00", PackageName: "Starter 4"})
	svc, _ := newTestPaymentService(repo)

	result, err := svc.Confirm(context.Background(), payment.ID, ConfirmPaymentRequest{LessonsToAdd: 4}, AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, 4, result.NewBalance)
	assert.True(t, result.RoleChanged)
	assert.Equal(t, models.RoleStudent, result.NewRole)
}

func TestPaymentServiceConfirmTwiceIsStateConflict(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.roles["student-1"] = models.RoleStudent
	payment := repo.add(&models.Payment{StudentID: "student-1", Amount: "20000.00", PackageName: "Starter 4"})
	svc, _ := newTestPaymentService(repo)

	_, err := svc.Confirm(context.Background(), payment.ID, ConfirmPaymentRequest{LessonsToAdd: 4}, AuditMeta{})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), payment.ID, ConfirmPaymentRequest{LessonsToAdd: 4}, AuditMeta{})
	assertAppError(t, err, appErrors.ErrStateConflict.Code)

	// The single confirmation credited exactly once.
	assert.Equal(t, 4, repo.balances["student-1"])
}

func TestPaymentServiceConfirmRequiresPositiveLessons(t *testing.T) {
	repo := newMockPaymentRepo()
	payment := repo.add(&models.Payment{StudentID: "student-1", Amount: "20000.00", PackageName: "Starter 4"})
	svc, _ := newTestPaymentService(repo)

	for _, lessons := range []int{0, -3} {
		_, err := svc.Confirm(context.Background(), payment.ID, ConfirmPaymentRequest{LessonsToAdd: lessons}, AuditMeta{})
		assertAppError(t, err, appErrors.ErrValidation.Code)
	}
}

func TestPaymentServiceConfirmUnknownPayment(t *testing.T) {
	svc, _ := newTestPaymentService(newMockPaymentRepo())

	_, err := svc.Confirm(context.Background(), "missing", ConfirmPaymentRequest{LessonsToAdd: 4}, AuditMeta{})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestPaymentServiceCreateRecordsAudit(t *testing.T) {
	repo := newMockPaymentRepo()
	svc, audit := newTestPaymentService(repo)

	payment, err := svc.Create(context.Background(), CreatePaymentRequest{StudentID: "student-1", Amount: "20000.00", PackageName: "Starter 4"}, AuditMeta{})
	require.NoError(t, err)
	assert.False(t, payment.Confirmed)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionCreatePayment, audit.entries[0].Action)
}

func TestPaymentServiceCreateRequiresStudent(t *testing.T) {
	svc, _ := newTestPaymentService(newMockPaymentRepo())

	_, err := svc.Create(context.Background(), CreatePaymentRequest{Amount: "20000.00", PackageName: "Starter 4"}, AuditMeta{})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestPaymentServiceReceiptRequiresConfirmation(t *testing.T) {
	repo := newMockPaymentRepo()
	payment := repo.add(&models.Payment{StudentID: "student-1", Amount: "20000.00", PackageName: "Starter 4"})
	svc, _ := newTestPaymentService(repo)

	_, err := svc.Receipt(context.Background(), payment.ID)
	assertAppError(t, err, appErrors.ErrStateConflict.Code)
}

func TestPaymentServiceReceiptRendersPDF(t *testing.T) {
	repo := newMockPaymentRepo()
	payment := repo.add(&models.Payment{StudentID: "student-1", Amount: "20000.00", PackageName: "Starter 4", Confirmed: true})
	svc, _ := newTestPaymentService(repo)

	data, err := svc.Receipt(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}
