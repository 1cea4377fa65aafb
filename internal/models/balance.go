package models

import "time"

// LessonBalance tracks the prepaid lessons a student may still consume.
// Exactly one row exists per user; rows are created lazily with a zero
// balance and mutated only under an exclusive row lock.
type LessonBalance struct {
	StudentID        string    `db:"student_id" json:"student_id"`
	LessonsAvailable int       `db:"lessons_available" json:"lessons_available"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// BalanceView is the balance representation returned by the API.
type BalanceView struct {
	StudentID        string    `db:"student_id" json:"student_id"`
	StudentEmail     string    `db:"student_email" json:"student_email"`
	LessonsAvailable int       `db:"lessons_available" json:"lessons_available"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
