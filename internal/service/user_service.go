package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tutorhub/backoffice-api/internal/models"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetRole(ctx context.Context, id string, role models.UserRole) error
	Delete(ctx context.Context, id string) error
}

// CreateUserRequest is the administrative user-creation payload.
type CreateUserRequest struct {
	Email           string          `json:"email" validate:"required,email"`
	Password        string          `json:"password" validate:"required,min=6"`
	Role            models.UserRole `json:"role" validate:"required"`
	Phone           string          `json:"phone"`
	StudentFullName string          `json:"student_full_name"`
	ParentFullName  string          `json:"parent_full_name"`
}

// UpdateUserRequest is the administrative partial-update payload.
type UpdateUserRequest struct {
	Phone           *string `json:"phone"`
	StudentFullName *string `json:"student_full_name"`
	ParentFullName  *string `json:"parent_full_name"`
	Active          *bool   `json:"active"`
}

// UserService provides account administration use cases.
type UserService struct {
	repo      userRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	rootEmail string
}

// NewUserService constructs a UserService instance. rootEmail identifies the
// immutable root-admin account.
func NewUserService(repo userRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, rootEmail string) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		rootEmail: strings.ToLower(strings.TrimSpace(rootEmail)),
	}
}

// List returns users matching the filter with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// GetByEmail returns a single user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions an account with an explicit role.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actor AuditMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !models.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:    string(hash),
		Role:            req.Role,
		Phone:           req.Phone,
		StudentFullName: req.StudentFullName,
		ParentFullName:  req.ParentFullName,
		Active:          true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.recordAudit(ctx, actor, models.AuditActionUserUpdate, map[string]interface{}{"created": user.ID, "role": user.Role})
	return user, nil
}

// Update applies an administrative partial update. The root-admin account
// cannot be deactivated.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actor AuditMeta) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.isRoot(user) && req.Active != nil && !*req.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "root admin cannot be deactivated")
	}

	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.StudentFullName != nil {
		user.StudentFullName = *req.StudentFullName
	}
	if req.ParentFullName != nil {
		user.ParentFullName = *req.ParentFullName
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.recordAudit(ctx, actor, models.AuditActionUserUpdate, map[string]interface{}{"user_id": id})
	return user, nil
}

// SetRole changes a user's role. The root-admin role is immutable.
func (s *UserService) SetRole(ctx context.Context, id string, role models.UserRole, actor AuditMeta) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.isRoot(user) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "root admin role cannot be changed")
	}

	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set role")
	}

	s.recordAudit(ctx, actor, models.AuditActionSetRole, map[string]interface{}{"user_id": id, "from": user.Role, "to": role})

	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	return user, nil
}

// Delete removes an account. The root-admin account cannot be deleted; audit
// entries survive through the nullable actor reference.
func (s *UserService) Delete(ctx context.Context, id string, actor AuditMeta) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.isRoot(user) {
		return appErrors.Clone(appErrors.ErrForbidden, "root admin cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.recordAudit(ctx, actor, models.AuditActionUserDelete, map[string]interface{}{"user_id": id, "email": user.Email})
	return nil
}

func (s *UserService) isRoot(user *models.User) bool {
	return s.rootEmail != "" && strings.EqualFold(user.Email, s.rootEmail)
}

func (s *UserService) recordAudit(ctx context.Context, actor AuditMeta, action string, meta map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	if err := s.audit.Create(ctx, &models.AuditLog{
		ActorID:   actor.ActorID,
		Action:    action,
		Meta:      payload,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
	}
}
