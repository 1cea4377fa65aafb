package models

import "time"

// Payment is a self-reported payment from a student or applicant. It starts
// unconfirmed; a manager or admin confirms it exactly once, which credits the
// student's lesson balance.
type Payment struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Amount      string    `db:"amount" json:"amount"`
	PackageName string    `db:"package_name" json:"package_name"`
	Confirmed   bool      `db:"confirmed" json:"confirmed"`
	PaidAt      time.Time `db:"paid_at" json:"paid_at"`
}

// PaymentView joins the student email for list responses.
type PaymentView struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	StudentEmail string    `db:"student_email" json:"student_email"`
	Amount       string    `db:"amount" json:"amount"`
	PackageName  string    `db:"package_name" json:"package_name"`
	Confirmed    bool      `db:"confirmed" json:"confirmed"`
	PaidAt       time.Time `db:"paid_at" json:"paid_at"`
}

// PaymentFilter captures list filters for payments.
type PaymentFilter struct {
	StudentID string
	Confirmed *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PaymentConfirmResult reports the effects of a confirmation.
type PaymentConfirmResult struct {
	PaymentID    string   `json:"payment_id"`
	StudentID    string   `json:"student_id"`
	LessonsAdded int      `json:"lessons_added"`
	NewBalance   int      `json:"new_balance"`
	OldRole      UserRole `json:"old_role"`
	NewRole      UserRole `json:"new_role"`
	RoleChanged  bool     `json:"role_changed"`
}
