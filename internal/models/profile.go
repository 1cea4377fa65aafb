package models

// StudentProfile holds gamification state for a user. One row per user,
// created alongside the user record.
type StudentProfile struct {
	UserID         string `db:"user_id" json:"user_id"`
	Level          int    `db:"level" json:"level"`
	XP             int    `db:"xp" json:"xp"`
	SeasonCurrency int    `db:"season_currency" json:"season_currency"`
}

// SeasonSummary is the gamification slice of the cabinet, served on its own
// endpoint so the mobile client can poll it without the full dashboard.
type SeasonSummary struct {
	Level          int `json:"level"`
	XP             int `json:"xp"`
	SeasonCurrency int `json:"season_currency"`
}

// StudentDashboard is the aggregated personal-cabinet payload.
type StudentDashboard struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	StudentFullName string   `json:"student_full_name"`
	Role            UserRole `json:"role"`
	Balance         int      `json:"balance"`
	Level           int      `json:"level"`
	XP              int      `json:"xp"`
	SeasonCurrency  int      `json:"season_currency"`
}
