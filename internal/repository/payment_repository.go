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

// PaymentRepository manages payment records and their confirmation.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create records a new unconfirmed payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	query := `INSERT INTO payments (id, student_id, amount, package_name, confirmed, paid_at)
		VALUES (:id, :student_id, :amount, :package_name, :confirmed, :paid_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns a single payment joined with the student email.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentView, error) {
	query := `SELECT p.id, p.student_id, u.email AS student_email, p.amount, p.package_name, p.confirmed, p.paid_at
		FROM payments p
		JOIN users u ON u.id = p.student_id
		WHERE p.id = $1`
	var view models.PaymentView
	if err := r.db.GetContext(ctx, &view, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &view, nil
}

// List returns payments based on filters with total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentView, int, error) {
	baseQuery := `FROM payments p JOIN users u ON u.id = p.student_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Confirmed != nil {
		conditions = append(conditions, fmt.Sprintf("p.confirmed = $%d", len(args)+1))
		args = append(args, *filter.Confirmed)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"paid_at": "p.paid_at",
		"amount":  "p.amount",
	}
	sortColumn, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortColumn = "p.paid_at"
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

	listQuery := fmt.Sprintf(`SELECT p.id, p.student_id, u.email AS student_email, p.amount, p.package_name, p.confirmed, p.paid_at %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		baseQuery, sortColumn, sortOrder, pageSize, offset)

	var views []models.PaymentView
	if err := r.db.SelectContext(ctx, &views, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return views, total, nil
}

// Confirm marks a payment confirmed exactly once, credits the student's
// balance by lessonsToAdd and promotes an applicant to student when the
// resulting balance is positive. The entire sequence, including the audit
// entry, runs in one transaction; a second confirmation of the same payment
// fails with ErrAlreadyConfirmed.
func (r *PaymentRepository) Confirm(ctx context.Context, paymentID string, lessonsToAdd int, actor AuditActor) (result *models.PaymentConfirmResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var payment models.Payment
	err = tx.GetContext(ctx, &payment, `SELECT id, student_id, amount, package_name, confirmed, paid_at FROM payments WHERE id = $1 FOR UPDATE`, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	if payment.Confirmed {
		err = ErrAlreadyConfirmed
		return nil, err
	}

	before, err := lockBalance(ctx, tx, payment.StudentID)
	if err != nil {
		return nil, err
	}
	next := before + lessonsToAdd

	var oldRole models.UserRole
	if err = tx.GetContext(ctx, &oldRole, `SELECT role FROM users WHERE id = $1`, payment.StudentID); err != nil {
		return nil, fmt.Errorf("get student role: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE lesson_balances SET lessons_available = $1, updated_at = NOW() WHERE student_id = $2`, next, payment.StudentID); err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	newRole := oldRole
	if next > 0 && oldRole == models.RoleApplicant {
		if err = promoteApplicantTx(ctx, tx, payment.StudentID); err != nil {
			return nil, err
		}
		newRole = models.RoleStudent
	}

	if _, err = tx.ExecContext(ctx, `UPDATE payments SET confirmed = TRUE WHERE id = $1`, paymentID); err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"payment_id":     paymentID,
		"student_id":     payment.StudentID,
		"lessons_added":  lessonsToAdd,
		"balance_before": before,
		"balance_after":  next,
		"old_role":       oldRole,
		"new_role":       newRole,
	})
	err = appendAuditTx(ctx, tx, &models.AuditLog{
		ActorID:   actor.ActorID,
		Action:    models.AuditActionConfirmPayment,
		Meta:      meta,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment confirm: %w", err)
	}

	return &models.PaymentConfirmResult{
		PaymentID:    paymentID,
		StudentID:    payment.StudentID,
		LessonsAdded: lessonsToAdd,
		NewBalance:   next,
		OldRole:      oldRole,
		NewRole:      newRole,
		RoleChanged:  newRole != oldRole,
	}, nil
}
