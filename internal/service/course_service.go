package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type courseRepository interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	ListModules(ctx context.Context, courseID string) ([]models.Module, error)
	CreateModule(ctx context.Context, module *models.Module) error
	UpdateModule(ctx context.Context, module *models.Module) error
	DeleteModule(ctx context.Context, id string) error
	ListTopics(ctx context.Context, moduleID string) ([]models.LessonTopic, error)
	CreateTopic(ctx context.Context, topic *models.LessonTopic) error
	UpdateTopic(ctx context.Context, topic *models.LessonTopic) error
	DeleteTopic(ctx context.Context, id string) error
}

// CourseRequest is the course create/update payload.
type CourseRequest struct {
	Title string `json:"title" validate:"required"`
}

// ModuleRequest is the module create/update payload.
type ModuleRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Order       int    `json:"order" validate:"gte=0"`
}

// TopicRequest is the topic create/update payload.
type TopicRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Order       int    `json:"order" validate:"gte=0"`
}

// CourseService provides catalog management use cases.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// ListCourses returns all courses.
func (s *CourseService) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// GetCourse returns a single course.
func (s *CourseService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindCourse(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// CreateCourse adds a course to the catalog.
func (s *CourseService) CreateCourse(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{Title: req.Title}
	if err := s.repo.CreateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// UpdateCourse renames a course.
func (s *CourseService) UpdateCourse(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Title = req.Title
	if err := s.repo.UpdateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// DeleteCourse removes a course with its modules and topics.
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	if err := s.repo.DeleteCourse(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// ListModules returns a course's modules in order.
func (s *CourseService) ListModules(ctx context.Context, courseID string) ([]models.Module, error) {
	modules, err := s.repo.ListModules(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}
	return modules, nil
}

// CreateModule adds a module to a course. Order slots are unique per course.
func (s *CourseService) CreateModule(ctx context.Context, courseID string, req ModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	module := &models.Module{CourseID: courseID, Title: req.Title, Description: req.Description, Order: req.Order}
	if err := s.repo.CreateModule(ctx, module); err != nil {
		return nil, translateCatalogError(err, "failed to create module")
	}
	return module, nil
}

// UpdateModule rewrites a module, including its order slot.
func (s *CourseService) UpdateModule(ctx context.Context, id string, req ModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	module := &models.Module{ID: id, Title: req.Title, Description: req.Description, Order: req.Order}
	if err := s.repo.UpdateModule(ctx, module); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, translateCatalogError(err, "failed to update module")
	}
	return module, nil
}

// DeleteModule removes a module and its topics.
func (s *CourseService) DeleteModule(ctx context.Context, id string) error {
	if err := s.repo.DeleteModule(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete module")
	}
	return nil
}

// ListTopics returns a module's topics in order.
func (s *CourseService) ListTopics(ctx context.Context, moduleID string) ([]models.LessonTopic, error) {
	topics, err := s.repo.ListTopics(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}
	return topics, nil
}

// CreateTopic adds a topic to a module. Order slots are unique per module.
func (s *CourseService) CreateTopic(ctx context.Context, moduleID string, req TopicRequest) (*models.LessonTopic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}
	topic := &models.LessonTopic{ModuleID: moduleID, Title: req.Title, Description: req.Description, Order: req.Order}
	if err := s.repo.CreateTopic(ctx, topic); err != nil {
		return nil, translateCatalogError(err, "failed to create topic")
	}
	return topic, nil
}

// UpdateTopic rewrites a topic, including its order slot.
func (s *CourseService) UpdateTopic(ctx context.Context, id string, req TopicRequest) (*models.LessonTopic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}
	topic := &models.LessonTopic{ID: id, Title: req.Title, Description: req.Description, Order: req.Order}
	if err := s.repo.UpdateTopic(ctx, topic); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, translateCatalogError(err, "failed to update topic")
	}
	return topic, nil
}

// DeleteTopic removes a topic.
func (s *CourseService) DeleteTopic(ctx context.Context, id string) error {
	if err := s.repo.DeleteTopic(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete topic")
	}
	return nil
}

func translateCatalogError(err error, fallback string) error {
	if errors.Is(err, repository.ErrDuplicateOrder) {
		return appErrors.Clone(appErrors.ErrValidation, "order is already used within the parent")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
}
