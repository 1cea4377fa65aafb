package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tutorhub/backoffice-api/internal/models"
)

// CourseRepository manages the course/module/topic catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListCourses returns all courses ordered by title.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, `SELECT id, title, created_at, updated_at FROM courses ORDER BY title ASC`); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindCourse returns a single course by id.
func (r *CourseRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, `SELECT id, title, created_at, updated_at FROM courses WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// CreateCourse inserts a new course.
func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, `INSERT INTO courses (id, title, created_at, updated_at) VALUES (:id, :title, :created_at, :updated_at)`, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateCourse renames a course.
func (r *CourseRepository) UpdateCourse(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE courses SET title = :title, updated_at = :updated_at WHERE id = :id`, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCourse removes a course and, through cascading constraints, its
// modules and topics.
func (r *CourseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListModules returns a course's modules in catalog order.
func (r *CourseRepository) ListModules(ctx context.Context, courseID string) ([]models.Module, error) {
	var modules []models.Module
	query := `SELECT id, course_id, title, description, sort_order, created_at, updated_at FROM modules WHERE course_id = $1 ORDER BY sort_order ASC`
	if err := r.db.SelectContext(ctx, &modules, query, courseID); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// CreateModule inserts a module. A duplicate order within the course fails
// with ErrDuplicateOrder.
func (r *CourseRepository) CreateModule(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	module.CreatedAt = now
	module.UpdatedAt = now
	query := `INSERT INTO modules (id, course_id, title, description, sort_order, created_at, updated_at)
		VALUES (:id, :course_id, :title, :description, :sort_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return translateOrderConflict(err, "create module")
	}
	return nil
}

// UpdateModule rewrites a module's fields, including its order slot.
func (r *CourseRepository) UpdateModule(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	query := `UPDATE modules SET title = :title, description = :description, sort_order = :sort_order, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, module)
	if err != nil {
		return translateOrderConflict(err, "update module")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteModule removes a module and its topics.
func (r *CourseRepository) DeleteModule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListTopics returns a module's topics in catalog order.
func (r *CourseRepository) ListTopics(ctx context.Context, moduleID string) ([]models.LessonTopic, error) {
	var topics []models.LessonTopic
	query := `SELECT id, module_id, title, description, sort_order, created_at, updated_at FROM lesson_topics WHERE module_id = $1 ORDER BY sort_order ASC`
	if err := r.db.SelectContext(ctx, &topics, query, moduleID); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// CreateTopic inserts a topic. A duplicate order within the module fails
// with ErrDuplicateOrder.
func (r *CourseRepository) CreateTopic(ctx context.Context, topic *models.LessonTopic) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	topic.CreatedAt = now
	topic.UpdatedAt = now
	query := `INSERT INTO lesson_topics (id, module_id, title, description, sort_order, created_at, updated_at)
		VALUES (:id, :module_id, :title, :description, :sort_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return translateOrderConflict(err, "create topic")
	}
	return nil
}

// UpdateTopic rewrites a topic's fields, including its order slot.
func (r *CourseRepository) UpdateTopic(ctx context.Context, topic *models.LessonTopic) error {
	topic.UpdatedAt = time.Now().UTC()
	query := `UPDATE lesson_topics SET title = :title, description = :description, sort_order = :sort_order, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, topic)
	if err != nil {
		return translateOrderConflict(err, "update topic")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTopic removes a topic.
func (r *CourseRepository) DeleteTopic(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lesson_topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// translateOrderConflict maps the Postgres unique-violation code raised by
// the per-parent order constraint to ErrDuplicateOrder.
func translateOrderConflict(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateOrder
	}
	return fmt.Errorf("%s: %w", op, err)
}
