package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type lessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson, actor repository.AuditActor) error
	FindByID(ctx context.Context, id string) (*models.LessonView, error)
	FindEntity(ctx context.Context, id string) (*models.Lesson, error)
	List(ctx context.Context, filter models.LessonFilter) ([]models.LessonView, int, error)
	ListStudentsForTeacher(ctx context.Context, teacherID string) ([]models.User, error)
	ApplyUpdate(ctx context.Context, id string, patch repository.LessonPatch) (*models.Lesson, error)
	Debit(ctx context.Context, id string, markDone bool, actor repository.AuditActor) (*models.Lesson, error)
}

type lessonUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type lessonBalanceRepository interface {
	GetOrCreate(ctx context.Context, studentID string) (*models.LessonBalance, error)
}

// LessonActor identifies who is performing a lesson operation; teachers are
// restricted to their own lessons.
type LessonActor struct {
	ID        string
	Role      models.UserRole
	Superuser bool
	IPAddress string
	UserAgent string
}

func (a LessonActor) privileged() bool {
	return a.Superuser || a.Role == models.RoleAdmin || a.Role == models.RoleManager
}

func (a LessonActor) meta() AuditMeta {
	id := a.ID
	return AuditMeta{ActorID: &id, IPAddress: a.IPAddress, UserAgent: a.UserAgent}
}

// CreateLessonRequest schedules a new lesson.
type CreateLessonRequest struct {
	StudentID   string    `json:"student_id" validate:"required"`
	TeacherID   *string   `json:"teacher_id"`
	CourseID    *string   `json:"course_id"`
	Link        string    `json:"link"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Comment     string    `json:"comment"`
	IsTrial     bool      `json:"is_trial"`
}

// UpdateLessonRequest is a partial lesson update. Absent fields stay as is.
type UpdateLessonRequest struct {
	Status             *models.LessonStatus `json:"status"`
	Comment            *string              `json:"comment"`
	Link               *string              `json:"link"`
	CancellationReason *string              `json:"cancellation_reason"`
	Feedback           *string              `json:"feedback"`
}

// DebitLessonRequest consumes one prepaid lesson.
type DebitLessonRequest struct {
	// MarkDone defaults to true when omitted: the back-office debit button
	// both charges the lesson and closes it unless asked not to.
	MarkDone *bool `json:"mark_done"`
}

// LessonService provides lesson lifecycle use cases.
type LessonService struct {
	repo      lessonRepository
	users     lessonUserRepository
	balances  lessonBalanceRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewLessonService constructs a LessonService instance. A nil metrics
// service disables instrumentation.
func NewLessonService(repo lessonRepository, users lessonUserRepository, balances lessonBalanceRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LessonService{repo: repo, users: users, balances: balances, validator: validate, logger: logger, metrics: metrics}
}

// List returns lessons matching the filter. Teachers only see their own.
func (s *LessonService) List(ctx context.Context, filter models.LessonFilter, actor LessonActor) ([]models.LessonView, *models.Pagination, error) {
	if actor.Role == models.RoleTeacher && !actor.Superuser {
		filter.TeacherID = actor.ID
	}
	lessons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return lessons, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single lesson, enforcing teacher ownership.
func (s *LessonService) Get(ctx context.Context, id string, actor LessonActor) (*models.LessonView, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorize(lesson.TeacherID, lesson.StudentID, actor); err != nil {
		return nil, err
	}
	return lesson, nil
}

// Create schedules a lesson after the role-dependent preconditions:
//
//   - manager/admin, trial: target must be an applicant or hold a zero balance
//   - manager/admin, regular: target must be a student with a positive balance
//   - teacher: regular lessons only, same student/balance requirement, and
//     the lesson is always attributed to the acting teacher
func (s *LessonService) Create(ctx context.Context, req CreateLessonRequest, actor LessonActor) (*models.LessonView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	if actor.Role == models.RoleTeacher && !actor.Superuser {
		if req.IsTrial {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot create trial lessons")
		}
		teacherID := actor.ID
		req.TeacherID = &teacherID
	}

	target, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	balance, err := s.balances.GetOrCreate(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}

	if req.IsTrial {
		if target.Role != models.RoleApplicant && balance.LessonsAvailable != 0 {
			return nil, appErrors.Clone(appErrors.ErrStateConflict, "trial lessons are for applicants or students without a balance")
		}
	} else {
		if target.Role != models.RoleStudent {
			return nil, appErrors.Clone(appErrors.ErrStateConflict, "regular lessons require the student role")
		}
		if balance.LessonsAvailable <= 0 {
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "regular lessons require a positive balance")
		}
	}

	lesson := &models.Lesson{
		StudentID:   req.StudentID,
		TeacherID:   req.TeacherID,
		CourseID:    req.CourseID,
		Link:        req.Link,
		ScheduledAt: req.ScheduledAt,
		Comment:     req.Comment,
		IsTrial:     req.IsTrial,
	}
	if err := s.repo.Create(ctx, lesson, actor.meta().actor()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	view, err := s.repo.FindByID(ctx, lesson.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created lesson")
	}
	return view, nil
}

// Update patches a lesson and applies the lifecycle transition rules.
func (s *LessonService) Update(ctx context.Context, id string, req UpdateLessonRequest, actor LessonActor) (*models.Lesson, error) {
	if req.Status != nil && !models.ValidLessonStatus(*req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lesson status")
	}

	existing, err := s.repo.FindEntity(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorize(existing.TeacherID, existing.StudentID, actor); err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyUpdate(ctx, id, repository.LessonPatch{
		Status:             req.Status,
		Comment:            req.Comment,
		Link:               req.Link,
		CancellationReason: req.CancellationReason,
		Feedback:           req.Feedback,
		Actor:              actor.meta().actor(),
	})
	if err != nil {
		return nil, translateLessonError(err)
	}
	if s.metrics != nil && req.Status != nil && *req.Status != existing.Status {
		switch {
		case *req.Status == models.LessonDone && updated.DebitedFromBalance && !existing.DebitedFromBalance:
			s.metrics.RecordLedgerMutation("debit")
		case existing.DebitedFromBalance && !updated.DebitedFromBalance:
			s.metrics.RecordLedgerMutation("credit")
		}
	}
	return updated, nil
}

// Debit consumes one prepaid lesson for this lesson record.
func (s *LessonService) Debit(ctx context.Context, id string, req DebitLessonRequest, actor LessonActor) (*models.Lesson, error) {
	existing, err := s.repo.FindEntity(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.authorize(existing.TeacherID, existing.StudentID, actor); err != nil {
		return nil, err
	}

	markDone := true
	if req.MarkDone != nil {
		markDone = *req.MarkDone
	}
	updated, err := s.repo.Debit(ctx, id, markDone, actor.meta().actor())
	if err != nil {
		return nil, translateLessonError(err)
	}
	if s.metrics != nil {
		s.metrics.RecordLedgerMutation("debit")
	}
	return updated, nil
}

// Students returns the distinct students a teacher works with.
func (s *LessonService) Students(ctx context.Context, teacherID string) ([]models.User, error) {
	students, err := s.repo.ListStudentsForTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// authorize rejects teachers touching other teachers' lessons and students
// reading other students' lessons. Managers, admins and superusers pass.
func (s *LessonService) authorize(teacherID *string, studentID string, actor LessonActor) error {
	if actor.privileged() {
		return nil
	}
	switch actor.Role {
	case models.RoleTeacher:
		if teacherID == nil || *teacherID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
		}
	case models.RoleStudent, models.RoleApplicant:
		if studentID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another student")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}
	return nil
}

func translateLessonError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	case errors.Is(err, repository.ErrFeedbackRequired):
		return appErrors.Clone(appErrors.ErrValidation, "feedback is required to mark a lesson done")
	case errors.Is(err, repository.ErrReasonRequired):
		return appErrors.Clone(appErrors.ErrValidation, "cancellation_reason is required to cancel a lesson")
	case errors.Is(err, repository.ErrAlreadyCancelled):
		return appErrors.Clone(appErrors.ErrStateConflict, "cancelled lessons cannot change status")
	case errors.Is(err, repository.ErrAlreadyDebited):
		return appErrors.Clone(appErrors.ErrStateConflict, "lesson is already debited")
	case errors.Is(err, repository.ErrTrialLesson):
		return appErrors.Clone(appErrors.ErrValidation, "trial lessons do not touch the balance")
	case errors.Is(err, repository.ErrInsufficientBalance):
		return appErrors.Clone(appErrors.ErrInsufficientBalance, "no lessons available on the balance")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
}
