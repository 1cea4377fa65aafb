package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/repository"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
)

type mockCourseRepo struct {
	courses         map[string]*models.Course
	modules         map[string]*models.Module
	topics          map[string]*models.LessonTopic
	createModuleErr error
	updateModuleErr error
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses: make(map[string]*models.Course),
		modules: make(map[string]*models.Module),
		topics:  make(map[string]*models.LessonTopic),
	}
}

func (m *mockCourseRepo) ListCourses(_ context.Context) ([]models.Course, error) {
	var out []models.Course
	for _, course := range m.courses {
		out = append(out, *course)
	}
	return out, nil
}

func (m *mockCourseRepo) FindCourse(_ context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (m *mockCourseRepo) CreateCourse(_ context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) UpdateCourse(_ context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) DeleteCourse(_ context.Context, id string) error {
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

func (m *mockCourseRepo) ListModules(_ context.Context, courseID string) ([]models.Module, error) {
	var out []models.Module
	for _, module := range m.modules {
		if module.CourseID == courseID {
			out = append(out, *module)
		}
	}
	return out, nil
}

func (m *mockCourseRepo) CreateModule(_ context.Context, module *models.Module) error {
	if m.createModuleErr != nil {
		return m.createModuleErr
	}
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	m.modules[module.ID] = module
	return nil
}

func (m *mockCourseRepo) UpdateModule(_ context.Context, module *models.Module) error {
	if m.updateModuleErr != nil {
		return m.updateModuleErr
	}
	if _, ok := m.modules[module.ID]; !ok {
		return sql.ErrNoRows
	}
	m.modules[module.ID] = module
	return nil
}

func (m *mockCourseRepo) DeleteModule(_ context.Context, id string) error {
	if _, ok := m.modules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.modules, id)
	return nil
}

func (m *mockCourseRepo) ListTopics(_ context.Context, moduleID string) ([]models.LessonTopic, error) {
	var out []models.LessonTopic
	for _, topic := range m.topics {
		if topic.ModuleID == moduleID {
			out = append(out, *topic)
		}
	}
	return out, nil
}

func (m *mockCourseRepo) CreateTopic(_ context.Context, topic *models.LessonTopic) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	m.topics[topic.ID] = topic
	return nil
}

func (m *mockCourseRepo) UpdateTopic(_ context.Context, topic *models.LessonTopic) error {
	if _, ok := m.topics[topic.ID]; !ok {
		return sql.ErrNoRows
	}
	m.topics[topic.ID] = topic
	return nil
}

func (m *mockCourseRepo) DeleteTopic(_ context.Context, id string) error {
	if _, ok := m.topics[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.topics, id)
	return nil
}

func TestCourseServiceCreateModuleDuplicateOrder(t *testing.T) {
	repo := newMockCourseRepo()
	course := &models.Course{Title: "English A1"}
	require.NoError(t, repo.CreateCourse(context.Background(), course))
	repo.createModuleErr = repository.ErrDuplicateOrder
	svc := NewCourseService(repo, nil, nil)

	_, err := svc.CreateModule(context.Background(), course.ID, ModuleRequest{Title: "Greetings", Order: 1})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestCourseServiceCreateModuleUnknownCourse(t *testing.T) {
	svc := NewCourseService(newMockCourseRepo(), nil, nil)

	_, err := svc.CreateModule(context.Background(), "missing", ModuleRequest{Title: "Greetings", Order: 1})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestCourseServiceCreateCourseRequiresTitle(t *testing.T) {
	svc := NewCourseService(newMockCourseRepo(), nil, nil)

	_, err := svc.CreateCourse(context.Background(), CourseRequest{})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestCourseServiceTopicLifecycle(t *testing.T) {
	repo := newMockCourseRepo()
	svc := NewCourseService(repo, nil, nil)

	course, err := svc.CreateCourse(context.Background(), CourseRequest{Title: "Math 5"})
	require.NoError(t, err)
	module, err := svc.CreateModule(context.Background(), course.ID, ModuleRequest{Title: "Fractions", Order: 1})
	require.NoError(t, err)

	topic, err := svc.CreateTopic(context.Background(), module.ID, TopicRequest{Title: "Adding fractions", Order: 1})
	require.NoError(t, err)
	assert.Equal(t, module.ID, topic.ModuleID)

	topics, err := svc.ListTopics(context.Background(), module.ID)
	require.NoError(t, err)
	assert.Len(t, topics, 1)

	require.NoError(t, svc.DeleteTopic(context.Background(), topic.ID))
	err = svc.DeleteTopic(context.Background(), topic.ID)
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}
