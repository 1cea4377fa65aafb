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

// RequestRepository manages the client-request inbox.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new instance of RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create records a new request in the SENT state.
func (r *RequestRepository) Create(ctx context.Context, req *models.ClientRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.RequestSent
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO client_requests (id, client_id, comment, status, manager_id, created_at, responded_at)
		VALUES (:id, :client_id, :comment, :status, :manager_id, :created_at, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create client request: %w", err)
	}
	return nil
}

// FindByID returns a single request joined with the client email.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.ClientRequestView, error) {
	query := `SELECT cr.id, cr.client_id, u.email AS client_email, cr.comment, cr.status, cr.manager_id, cr.created_at, cr.responded_at
		FROM client_requests cr
		JOIN users u ON u.id = cr.client_id
		WHERE cr.id = $1`
	var view models.ClientRequestView
	if err := r.db.GetContext(ctx, &view, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find client request: %w", err)
	}
	return &view, nil
}

// List returns requests based on filters with total count, oldest SENT first.
func (r *RequestRepository) List(ctx context.Context, filter models.ClientRequestFilter) ([]models.ClientRequestView, int, error) {
	baseQuery := `FROM client_requests cr JOIN users u ON u.id = cr.client_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("cr.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.ClientID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf(`SELECT cr.id, cr.client_id, u.email AS client_email, cr.comment, cr.status, cr.manager_id, cr.created_at, cr.responded_at %s ORDER BY cr.created_at ASC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var views []models.ClientRequestView
	if err := r.db.SelectContext(ctx, &views, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list client requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count client requests: %w", err)
	}
	return views, total, nil
}

// Respond moves a request from SENT to RESPONDED exactly once, stamping the
// responding manager. The transition and its audit entry share a transaction.
func (r *RequestRepository) Respond(ctx context.Context, id, managerID string, actor AuditActor) (updated *models.ClientRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var req models.ClientRequest
	err = tx.GetContext(ctx, &req, `SELECT id, client_id, comment, status, manager_id, created_at, responded_at FROM client_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock client request: %w", err)
	}
	if req.Status == models.RequestResponded {
		err = ErrAlreadyResponded
		return nil, err
	}

	now := time.Now().UTC()
	req.Status = models.RequestResponded
	req.ManagerID = &managerID
	req.RespondedAt = &now

	if _, err = tx.ExecContext(ctx, `UPDATE client_requests SET status = $1, manager_id = $2, responded_at = $3 WHERE id = $4`,
		req.Status, managerID, now, id); err != nil {
		return nil, fmt.Errorf("respond client request: %w", err)
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"request_id": id,
		"client_id":  req.ClientID,
	})
	err = appendAuditTx(ctx, tx, &models.AuditLog{
		ActorID:   actor.ActorID,
		Action:    models.AuditActionRespondRequest,
		Meta:      meta,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit respond: %w", err)
	}
	return &req, nil
}
