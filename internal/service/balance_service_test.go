package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type mockBalanceRepo struct {
	balances map[string]int
	lastAdj  *repository.BalanceAdjustment
}

func newMockBalanceRepo() *mockBalanceRepo {
	return &mockBalanceRepo{balances: make(map[string]int)}
}

func (m *mockBalanceRepo) GetOrCreate(_ context.Context, studentID string) (*models.LessonBalance, error) {
	return &models.LessonBalance{StudentID: studentID, LessonsAvailable: m.balances[studentID]}, nil
}

func (m *mockBalanceRepo) ListViews(_ context.Context, _, _ int) ([]models.BalanceView, int, error) {
	return nil, len(m.balances), nil
}

func (m *mockBalanceRepo) Adjust(_ context.Context, adj repository.BalanceAdjustment) (*models.LessonBalance, error) {
	m.lastAdj = &adj
	next := m.balances[adj.StudentID]
	if adj.Absolute != nil {
		next = *adj.Absolute
	} else {
		next += adj.Delta
		if next < 0 {
			next = 0
		}
	}
	m.balances[adj.StudentID] = next
	return &models.LessonBalance{StudentID: adj.StudentID, LessonsAvailable: next}, nil
}

func TestBalanceServiceAdjustRequiresExactlyOneField(t *testing.T) {
	svc := NewBalanceService(newMockBalanceRepo(), nil, nil, nil)

	_, err := svc.Adjust(context.Background(), "student-1", AdjustBalanceRequest{}, AuditMeta{})
	assertAppError(t, err, appErrors.ErrValidation.Code)

	absolute, delta := 5, 2
	_, err = svc.Adjust(context.Background(), "student-1", AdjustBalanceRequest{LessonsAvailable: &absolute, Delta: &delta}, AuditMeta{})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestBalanceServiceAdjustRejectsNegativeAbsolute(t *testing.T) {
	svc := NewBalanceService(newMockBalanceRepo(), nil, nil, nil)

	negative := -1
	_, err := svc.Adjust(context.Background(), "student-1", AdjustBalanceRequest{LessonsAvailable: &negative}, AuditMeta{})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestBalanceServiceAdjustAbsolute(t *testing.T) {
	repo := newMockBalanceRepo()
	repo.balances["student-1"] = 2
	svc := NewBalanceService(repo, nil, nil, nil)

	target := 8
	balance, err := svc.Adjust(context.Background(), "student-1", AdjustBalanceRequest{LessonsAvailable: &target}, AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, 8, balance.LessonsAvailable)
	require.NotNil(t, repo.lastAdj.Absolute)
	assert.Equal(t, 8, *repo.lastAdj.Absolute)
}

func TestBalanceServiceAdjustDeltaClamps(t *testing.T) {
	repo := newMockBalanceRepo()
	repo.balances["student-1"] = 1
	svc := NewBalanceService(repo, nil, nil, nil)

	delta := -5
	balance, err := svc.Adjust(context.Background(), "student-1", AdjustBalanceRequest{Delta: &delta}, AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, balance.LessonsAvailable)
	assert.Equal(t, -5, repo.lastAdj.Delta)
}

func TestBalanceServiceGetCreatesZeroRow(t *testing.T) {
	svc := NewBalanceService(newMockBalanceRepo(), nil, nil, nil)

	balance, err := svc.Get(context.Background(), "fresh-student")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.LessonsAvailable)
}
