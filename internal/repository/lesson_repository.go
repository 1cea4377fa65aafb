package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/backoffice-api/internal/models"
)

// LessonPatch is a partial lesson update. Nil fields are left unchanged.
type LessonPatch struct {
	Status             *models.LessonStatus
	Comment            *string
	Link               *string
	CancellationReason *string
	Feedback           *string
	Actor              AuditActor
}

const lessonViewColumns = `l.id, l.student_id, s.email AS student_email, s.student_full_name, l.parent_full_name,
	l.teacher_id, t.email AS teacher_email, l.course_id, l.link, l.scheduled_at, l.status, l.comment,
	l.cancellation_reason, l.feedback, l.debited_from_balance, l.is_trial, l.created_at`

const lessonJoins = `FROM lessons l
	JOIN users s ON s.id = l.student_id
	LEFT JOIN users t ON t.id = l.teacher_id`

// LessonRepository manages lesson records and the ledger effects of their
// lifecycle transitions.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new instance of LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// Create inserts a planned lesson, snapshotting the parent name from the
// student account, and audits the creation in the same transaction.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson, actor AuditActor) (err error) {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.Status == "" {
		lesson.Status = models.LessonPlanned
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if lesson.ParentFullName == "" {
		if err = tx.GetContext(ctx, &lesson.ParentFullName, `SELECT parent_full_name FROM users WHERE id = $1`, lesson.StudentID); err != nil {
			return fmt.Errorf("snapshot parent name: %w", err)
		}
	}

	query := `INSERT INTO lessons (id, student_id, parent_full_name, teacher_id, course_id, link, scheduled_at, status,
			comment, cancellation_reason, feedback, debited_from_balance, is_trial, created_at)
		VALUES (:id, :student_id, :parent_full_name, :teacher_id, :course_id, :link, :scheduled_at, :status,
			:comment, :cancellation_reason, :feedback, :debited_from_balance, :is_trial, :created_at)`
	if _, err = tx.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"lesson_id":  lesson.ID,
		"student_id": lesson.StudentID,
		"is_trial":   lesson.IsTrial,
	})
	err = appendAuditTx(ctx, tx, &models.AuditLog{
		ActorID:   actor.ActorID,
		Action:    models.AuditActionCreateLesson,
		Meta:      meta,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	})
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit lesson create: %w", err)
	}
	return nil
}

// FindByID returns a single lesson joined with participant emails.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.LessonView, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE l.id = $1", lessonViewColumns, lessonJoins)
	var view models.LessonView
	if err := r.db.GetContext(ctx, &view, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find lesson: %w", err)
	}
	return &view, nil
}

// FindEntity returns the raw lesson row without joins.
func (r *LessonRepository) FindEntity(ctx context.Context, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.GetContext(ctx, &lesson, `SELECT id, student_id, parent_full_name, teacher_id, course_id, link, scheduled_at,
		status, comment, cancellation_reason, feedback, debited_from_balance, is_trial, created_at
		FROM lessons WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find lesson: %w", err)
	}
	return &lesson, nil
}

// List returns lessons based on filters with total count.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.LessonView, int, error) {
	baseQuery := lessonJoins + ` WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("l.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("l.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.email ILIKE $%d OR s.student_full_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"scheduled_at": "l.scheduled_at",
		"created_at":   "l.created_at",
		"status":       "l.status",
	}
	sortColumn, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortColumn = "l.scheduled_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", lessonViewColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)

	var views []models.LessonView
	if err := r.db.SelectContext(ctx, &views, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return views, total, nil
}

// ListStudentsForTeacher returns the distinct students a teacher has lessons
// with, for the teacher's roster view.
func (r *LessonRepository) ListStudentsForTeacher(ctx context.Context, teacherID string) ([]models.User, error) {
	query := `SELECT DISTINCT u.id, u.email, u.role, u.phone, u.student_full_name, u.parent_full_name, u.active, u.created_at, u.updated_at
		FROM users u
		JOIN lessons l ON l.student_id = u.id
		WHERE l.teacher_id = $1
		ORDER BY u.student_full_name ASC`
	var students []models.User
	if err := r.db.SelectContext(ctx, &students, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher students: %w", err)
	}
	return students, nil
}

// ApplyUpdate patches a lesson under a row lock and applies the lifecycle
// rules tied to status transitions:
//
//	PLANNED  -> DONE       requires feedback; debits one lesson unless trial
//	any      -> CANCELLED  requires a reason; refunds a prior debit
//	DONE     -> PLANNED    refunds a prior debit
//	CANCELLED -> anything  rejected, cancellation is terminal
//
// A comment change is copied to every other lesson of the same student. The
// patch, its ledger effect and the audit entry commit atomically; an
// insufficient balance rejects the whole update.
func (r *LessonRepository) ApplyUpdate(ctx context.Context, id string, patch LessonPatch) (updated *models.Lesson, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lesson models.Lesson
	err = tx.GetContext(ctx, &lesson, `SELECT id, student_id, parent_full_name, teacher_id, course_id, link, scheduled_at,
		status, comment, cancellation_reason, feedback, debited_from_balance, is_trial, created_at
		FROM lessons WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock lesson: %w", err)
	}

	prevStatus := lesson.Status
	prevComment := lesson.Comment

	if patch.Link != nil {
		lesson.Link = *patch.Link
	}
	if patch.Comment != nil {
		lesson.Comment = *patch.Comment
	}
	if patch.Feedback != nil {
		lesson.Feedback = *patch.Feedback
	}
	if patch.CancellationReason != nil {
		lesson.CancellationReason = *patch.CancellationReason
	}
	if patch.Status != nil {
		lesson.Status = *patch.Status
	}

	// Re-cancelling is rejected rather than treated as a same-status no-op.
	if patch.Status != nil && *patch.Status == models.LessonCancelled && prevStatus == models.LessonCancelled {
		err = ErrAlreadyCancelled
		return nil, err
	}

	if lesson.Status != prevStatus {
		if prevStatus == models.LessonCancelled {
			err = ErrAlreadyCancelled
			return nil, err
		}
		switch lesson.Status {
		case models.LessonDone:
			if strings.TrimSpace(lesson.Feedback) == "" {
				err = ErrFeedbackRequired
				return nil, err
			}
			if !lesson.IsTrial && !lesson.DebitedFromBalance {
				if err = debitBalanceTx(ctx, tx, lesson.StudentID); err != nil {
					return nil, err
				}
				lesson.DebitedFromBalance = true
			}
		case models.LessonCancelled:
			if strings.TrimSpace(lesson.CancellationReason) == "" {
				err = ErrReasonRequired
				return nil, err
			}
			if !lesson.IsTrial && lesson.DebitedFromBalance {
				if err = creditBalanceTx(ctx, tx, lesson.StudentID, 1); err != nil {
					return nil, err
				}
				lesson.DebitedFromBalance = false
			}
		case models.LessonPlanned:
			if !lesson.IsTrial && lesson.DebitedFromBalance {
				if err = creditBalanceTx(ctx, tx, lesson.StudentID, 1); err != nil {
					return nil, err
				}
				lesson.DebitedFromBalance = false
			}
		}
	}

	query := `UPDATE lessons SET link = :link, status = :status, comment = :comment,
		cancellation_reason = :cancellation_reason, feedback = :feedback,
		debited_from_balance = :debited_from_balance
		WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, &lesson); err != nil {
		return nil, fmt.Errorf("update lesson: %w", err)
	}

	// The journal comment is a per-student note, so a change fans out to the
	// student's other lessons.
	if patch.Comment != nil && lesson.Comment != prevComment {
		if _, err = tx.ExecContext(ctx, `UPDATE lessons SET comment = $1 WHERE student_id = $2 AND id <> $3`,
			lesson.Comment, lesson.StudentID, lesson.ID); err != nil {
			return nil, fmt.Errorf("propagate comment: %w", err)
		}
	}

	action := models.AuditActionUpdateLesson
	if lesson.Status == models.LessonCancelled && prevStatus != models.LessonCancelled {
		action = models.AuditActionCancelLesson
	}
	meta, _ := json.Marshal(map[string]interface{}{
		"lesson_id":   lesson.ID,
		"student_id":  lesson.StudentID,
		"from_status": prevStatus,
		"to_status":   lesson.Status,
	})
	err = appendAuditTx(ctx, tx, &models.AuditLog{
		ActorID:   patch.Actor.ActorID,
		Action:    action,
		Meta:      meta,
		IPAddress: patch.Actor.IPAddress,
		UserAgent: patch.Actor.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lesson update: %w", err)
	}
	return &lesson, nil
}

// Debit takes one lesson off the student's balance for this lesson and
// optionally marks it done in the same transaction. Trial lessons and
// already-debited lessons are rejected.
func (r *LessonRepository) Debit(ctx context.Context, id string, markDone bool, actor AuditActor) (updated *models.Lesson, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lesson models.Lesson
	err = tx.GetContext(ctx, &lesson, `SELECT id, student_id, parent_full_name, teacher_id, course_id, link, scheduled_at,
		status, comment, cancellation_reason, feedback, debited_from_balance, is_trial, created_at
		FROM lessons WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock lesson: %w", err)
	}

	if lesson.IsTrial {
		err = ErrTrialLesson
		return nil, err
	}
	if lesson.DebitedFromBalance {
		err = ErrAlreadyDebited
		return nil, err
	}

	if err = debitBalanceTx(ctx, tx, lesson.StudentID); err != nil {
		return nil, err
	}
	lesson.DebitedFromBalance = true
	if markDone {
		lesson.Status = models.LessonDone
	}

	if _, err = tx.ExecContext(ctx, `UPDATE lessons SET status = $1, debited_from_balance = TRUE WHERE id = $2`, lesson.Status, lesson.ID); err != nil {
		return nil, fmt.Errorf("mark lesson debited: %w", err)
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"lesson_id":  lesson.ID,
		"student_id": lesson.StudentID,
		"mark_done":  markDone,
	})
	err = appendAuditTx(ctx, tx, &models.AuditLog{
		ActorID:   actor.ActorID,
		Action:    models.AuditActionDebitLesson,
		Meta:      meta,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lesson debit: %w", err)
	}
	return &lesson, nil
}

// debitBalanceTx takes one lesson off a positive balance under a row lock,
// failing with ErrInsufficientBalance when nothing is left.
func debitBalanceTx(ctx context.Context, tx *sqlx.Tx, studentID string) error {
	current, err := lockBalance(ctx, tx, studentID)
	if err != nil {
		return err
	}
	if current <= 0 {
		return ErrInsufficientBalance
	}
	if _, err := tx.ExecContext(ctx, `UPDATE lesson_balances SET lessons_available = $1, updated_at = NOW() WHERE student_id = $2`, current-1, studentID); err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	return nil
}

// creditBalanceTx adds lessons back under a row lock.
func creditBalanceTx(ctx context.Context, tx *sqlx.Tx, studentID string, amount int) error {
	current, err := lockBalance(ctx, tx, studentID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE lesson_balances SET lessons_available = $1, updated_at = NOW() WHERE student_id = $2`, current+amount, studentID); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}
