package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent the actions written to the audit log.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionAdminLogin     = "ADMIN_LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegister       = "REGISTER"
	AuditActionUserUpdate     = "UPDATE_USER"
	AuditActionUserDelete     = "DELETE_USER"
	AuditActionSetRole        = "SET_ROLE"
	AuditActionCreateLesson   = "CREATE_LESSON"
	AuditActionUpdateLesson   = "UPDATE_LESSON"
	AuditActionCancelLesson   = "CANCEL_LESSON"
	AuditActionDebitLesson    = "DEBIT_LESSON"
	AuditActionCreatePayment  = "CREATE_PAYMENT"
	AuditActionConfirmPayment = "CONFIRM_PAYMENT"
	AuditActionUpdateBalance  = "UPDATE_BALANCE"
	AuditActionRespondRequest = "RESPOND_REQUEST"
)

// AuditLog is an append-only trail record. Actor is nullable so entries
// survive actor deletion; Meta is a structured JSON payload.
type AuditLog struct {
	ID        string          `db:"id" json:"id"`
	ActorID   *string         `db:"actor_id" json:"actor_id,omitempty"`
	Action    string          `db:"action" json:"action"`
	Meta      json.RawMessage `db:"meta" json:"meta,omitempty"`
	IPAddress string          `db:"ip_address" json:"ip_address"`
	UserAgent string          `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// AuditFilter captures list filters for the audit trail.
type AuditFilter struct {
	Action    string
	ActorID   string
	Search    string
	Page      int
	PageSize  int
	SortOrder string
}
