package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tutorhub/backoffice-api/internal/models"
)

// AuditActor carries request attribution for audit entries written inside
// repository transactions.
type AuditActor struct {
	ActorID   *string
	IPAddress string
	UserAgent string
}

// BalanceAdjustment describes a single ledger mutation. Exactly one of
// Absolute or Delta is applied: when Absolute is non-nil the stored value is
// replaced as given, otherwise Delta is added and a negative result is
// clamped to zero.
type BalanceAdjustment struct {
	StudentID string
	Absolute  *int
	Delta     int
	Actor     AuditActor
}

// BalanceRepository manages prepaid lesson balances.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a new instance of BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetOrCreate returns the student's balance row, creating a zero row when
// none exists yet.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, studentID string) (*models.LessonBalance, error) {
	if _, err := r.db.ExecContext(ctx, ensureBalanceQuery, studentID); err != nil {
		return nil, fmt.Errorf("ensure balance: %w", err)
	}
	var balance models.LessonBalance
	if err := r.db.GetContext(ctx, &balance, `SELECT student_id, lessons_available, updated_at FROM lesson_balances WHERE student_id = $1`, studentID); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &balance, nil
}

// ListViews returns balances joined with the owning user, newest first.
func (r *BalanceRepository) ListViews(ctx context.Context, page, pageSize int) ([]models.BalanceView, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT b.student_id, b.lessons_available, b.updated_at, u.email AS student_email
		FROM lesson_balances b
		JOIN users u ON u.id = b.student_id
		ORDER BY b.updated_at DESC
		LIMIT %d OFFSET %d`, pageSize, offset)

	var views []models.BalanceView
	if err := r.db.SelectContext(ctx, &views, query); err != nil {
		return nil, 0, fmt.Errorf("list balances: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM lesson_balances`); err != nil {
		return nil, 0, fmt.Errorf("count balances: %w", err)
	}
	return views, total, nil
}

// Adjust applies an absolute or relative balance change under a row lock.
// When the resulting balance is positive and the owner is still an
// applicant, the owner is promoted to student in the same transaction. The
// whole mutation, including its audit entry, commits or rolls back as one.
func (r *BalanceRepository) Adjust(ctx context.Context, adj BalanceAdjustment) (updated *models.LessonBalance, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	before, err := lockBalance(ctx, tx, adj.StudentID)
	if err != nil {
		return nil, err
	}

	next := before
	if adj.Absolute != nil {
		next = *adj.Absolute
	} else {
		next = before + adj.Delta
		if next < 0 {
			next = 0
		}
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE lesson_balances SET lessons_available = $1, updated_at = $2 WHERE student_id = $3`, next, now, adj.StudentID); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	if next > 0 {
		if err = promoteApplicantTx(ctx, tx, adj.StudentID); err != nil {
			return nil, err
		}
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"student_id": adj.StudentID,
		"before":     before,
		"after":      next,
	})
	err = appendAuditTx(ctx, tx, &models.AuditLog{
		ActorID:   adj.Actor.ActorID,
		Action:    models.AuditActionUpdateBalance,
		Meta:      meta,
		IPAddress: adj.Actor.IPAddress,
		UserAgent: adj.Actor.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit balance adjust: %w", err)
	}
	return &models.LessonBalance{StudentID: adj.StudentID, LessonsAvailable: next, UpdatedAt: now}, nil
}

const ensureBalanceQuery = `INSERT INTO lesson_balances (student_id, lessons_available, updated_at) VALUES ($1, 0, NOW()) ON CONFLICT (student_id) DO NOTHING`

// lockBalance ensures the row exists, then acquires a FOR UPDATE lock and
// returns the current value. Callers hold the lock until commit or rollback.
func lockBalance(ctx context.Context, tx *sqlx.Tx, studentID string) (int, error) {
	if _, err := tx.ExecContext(ctx, ensureBalanceQuery, studentID); err != nil {
		return 0, fmt.Errorf("ensure balance: %w", err)
	}
	var current int
	if err := tx.GetContext(ctx, &current, `SELECT lessons_available FROM lesson_balances WHERE student_id = $1 FOR UPDATE`, studentID); err != nil {
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	return current, nil
}

// promoteApplicantTx switches an applicant to the student role. Users in any
// other role are left untouched.
func promoteApplicantTx(ctx context.Context, tx *sqlx.Tx, userID string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2 AND role = $3`,
		models.RoleStudent, userID, models.RoleApplicant); err != nil {
		return fmt.Errorf("promote applicant: %w", err)
	}
	return nil
}
