package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/models"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type dashboardUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	GetOrCreateProfile(ctx context.Context, userID string) (*models.StudentProfile, error)
}

// DashboardService composes the student personal-cabinet payload, served
// from cache when enabled.
type DashboardService struct {
	users    dashboardUserRepository
	balances lessonBalanceRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(users dashboardUserRepository, balances lessonBalanceRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &DashboardService{users: users, balances: balances, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Student returns the aggregated cabinet payload for one user.
func (s *DashboardService) Student(ctx context.Context, userID string) (*models.StudentDashboard, error) {
	key := dashboardCacheKey(userID)
	if s.cache != nil {
		var cached models.StudentDashboard
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	balance, err := s.balances.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	profile, err := s.users.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	dashboard := &models.StudentDashboard{
		ID:              user.ID,
		Email:           user.Email,
		StudentFullName: user.StudentFullName,
		Role:            user.Role,
		Balance:         balance.LessonsAvailable,
		Level:           profile.Level,
		XP:              profile.XP,
		SeasonCurrency:  profile.SeasonCurrency,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return dashboard, nil
}

// Season returns the gamification summary for one user. It rides on the same
// cached payload as Student.
func (s *DashboardService) Season(ctx context.Context, userID string) (*models.SeasonSummary, error) {
	dashboard, err := s.Student(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.SeasonSummary{
		Level:          dashboard.Level,
		XP:             dashboard.XP,
		SeasonCurrency: dashboard.SeasonCurrency,
	}, nil
}

// InvalidateStudent drops the cached payload after a ledger or role change.
func (s *DashboardService) InvalidateStudent(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCacheKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.String("user_id", userID), zap.Error(err))
	}
}

func dashboardCacheKey(userID string) string {
	return fmt.Sprintf("dashboard:student:%s", userID)
}
