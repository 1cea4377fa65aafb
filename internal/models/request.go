package models

import "time"

// ClientRequestStatus represents the two-state ticket lifecycle.
type ClientRequestStatus string

const (
	RequestSent      ClientRequestStatus = "SENT"
	RequestResponded ClientRequestStatus = "RESPONDED"
)

// ClientRequest is a ticket from an applicant or student to a manager.
// The SENT to RESPONDED transition is one-way and sets manager and
// responded_at exactly once.
type ClientRequest struct {
	ID          string              `db:"id" json:"id"`
	ClientID    string              `db:"client_id" json:"client_id"`
	Comment     string              `db:"comment" json:"comment"`
	Status      ClientRequestStatus `db:"status" json:"status"`
	ManagerID   *string             `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	RespondedAt *time.Time          `db:"responded_at" json:"responded_at,omitempty"`
}

// ClientRequestView joins the client email for manager listings.
type ClientRequestView struct {
	ID          string              `db:"id" json:"id"`
	ClientID    string              `db:"client_id" json:"client_id"`
	ClientEmail string              `db:"client_email" json:"client_email"`
	Comment     string              `db:"comment" json:"comment"`
	Status      ClientRequestStatus `db:"status" json:"status"`
	ManagerID   *string             `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	RespondedAt *time.Time          `db:"responded_at" json:"responded_at,omitempty"`
}

// ClientRequestFilter captures list filters for client requests.
type ClientRequestFilter struct {
	Status   *ClientRequestStatus
	ClientID string
	Page     int
	PageSize int
}
