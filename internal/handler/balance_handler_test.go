package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/middleware"
	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	"github.com/tutorhub/backoffice-api/internal/service"
	"github.com/tutorhub/backoffice-api/pkg/response"
)

type balanceRepoMock struct {
	balances map[string]int
	lastAdj  *repository.BalanceAdjustment
}

func (m *balanceRepoMock) GetOrCreate(_ context.Context, studentID string) (*models.LessonBalance, error) {
	return &models.LessonBalance{StudentID: studentID, LessonsAvailable: m.balances[studentID]}, nil
}

func (m *balanceRepoMock) ListViews(_ context.Context, _, _ int) ([]models.BalanceView, int, error) {
	return nil, len(m.balances), nil
}

func (m *balanceRepoMock) Adjust(_ context.Context, adj repository.BalanceAdjustment) (*models.LessonBalance, error) {
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

func newBalanceTestHandler(repo *balanceRepoMock) *BalanceHandler {
	svc := service.NewBalanceService(repo, nil, nil, nil)
	return NewBalanceHandler(svc, nil)
}

func testContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != nil {
		reader = bytes.NewBuffer(body)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestBalanceHandlerAdjustAbsolute(t *testing.T) {
	repo := &balanceRepoMock{balances: map[string]int{"student-1": 2}}
	h := newBalanceTestHandler(repo)

	c, w := testContext(t, http.MethodPatch, "/manager/students/student-1/balance",
		[]byte(`{"lessons_available":8}`), &models.JWTClaims{UserID: "manager-1", Role: models.RoleManager})
	c.Params = gin.Params{{Key: "id", Value: "student-1"}}

	h.Adjust(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 8, repo.balances["student-1"])
	require.NotNil(t, repo.lastAdj.Actor.ActorID)
	assert.Equal(t, "manager-1", *repo.lastAdj.Actor.ActorID)
}

func TestBalanceHandlerAdjustRejectsEmptyPayload(t *testing.T) {
	repo := &balanceRepoMock{balances: map[string]int{}}
	h := newBalanceTestHandler(repo)

	c, w := testContext(t, http.MethodPatch, "/manager/students/student-1/balance",
		[]byte(`{}`), &models.JWTClaims{UserID: "manager-1", Role: models.RoleManager})
	c.Params = gin.Params{{Key: "id", Value: "student-1"}}

	h.Adjust(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
}

func TestBalanceHandlerGetOwnUsesClaims(t *testing.T) {
	repo := &balanceRepoMock{balances: map[string]int{"student-1": 5}}
	h := newBalanceTestHandler(repo)

	c, w := testContext(t, http.MethodGet, "/student/balance", nil,
		&models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	h.GetOwn(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"lessons_available":5`)
}

func TestBalanceHandlerGetOwnWithoutClaims(t *testing.T) {
	h := newBalanceTestHandler(&balanceRepoMock{balances: map[string]int{}})

	c, w := testContext(t, http.MethodGet, "/student/balance", nil, nil)

	h.GetOwn(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
