package models

import "time"

// LessonStatus represents the lifecycle state of a lesson.
type LessonStatus string

const (
	LessonPlanned   LessonStatus = "PLANNED"
	LessonDone      LessonStatus = "DONE"
	LessonCancelled LessonStatus = "CANCELLED"
)

// ValidLessonStatus reports whether the given status is known.
func ValidLessonStatus(s LessonStatus) bool {
	switch s {
	case LessonPlanned, LessonDone, LessonCancelled:
		return true
	}
	return false
}

// Lesson is a scheduled (or past) lesson record. Non-trial lessons debit one
// lesson from the student's balance when marked DONE and credit it back when
// the DONE status is reverted or the lesson is cancelled. The comment is a
// per-student journal note shared across all of the student's lessons.
type Lesson struct {
	ID                 string       `db:"id" json:"id"`
	StudentID          string       `db:"student_id" json:"student_id"`
	ParentFullName     string       `db:"parent_full_name" json:"parent_full_name"`
	TeacherID          *string      `db:"teacher_id" json:"teacher_id,omitempty"`
	CourseID           *string      `db:"course_id" json:"course_id,omitempty"`
	Link               string       `db:"link" json:"link"`
	ScheduledAt        time.Time    `db:"scheduled_at" json:"scheduled_at"`
	Status             LessonStatus `db:"status" json:"status"`
	Comment            string       `db:"comment" json:"comment"`
	CancellationReason string       `db:"cancellation_reason" json:"cancellation_reason"`
	Feedback           string       `db:"feedback" json:"feedback"`
	DebitedFromBalance bool         `db:"debited_from_balance" json:"debited_from_balance"`
	IsTrial            bool         `db:"is_trial" json:"is_trial"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}

// LessonView joins participant emails for list and detail responses.
type LessonView struct {
	ID                 string       `db:"id" json:"id"`
	StudentID          string       `db:"student_id" json:"student_id"`
	StudentEmail       string       `db:"student_email" json:"student_email"`
	StudentFullName    string       `db:"student_full_name" json:"student_full_name"`
	ParentFullName     string       `db:"parent_full_name" json:"parent_full_name"`
	TeacherID          *string      `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherEmail       *string      `db:"teacher_email" json:"teacher_email,omitempty"`
	CourseID           *string      `db:"course_id" json:"course_id,omitempty"`
	Link               string       `db:"link" json:"link"`
	ScheduledAt        time.Time    `db:"scheduled_at" json:"scheduled_at"`
	Status             LessonStatus `db:"status" json:"status"`
	Comment            string       `db:"comment" json:"comment"`
	CancellationReason string       `db:"cancellation_reason" json:"cancellation_reason"`
	Feedback           string       `db:"feedback" json:"feedback"`
	DebitedFromBalance bool         `db:"debited_from_balance" json:"debited_from_balance"`
	IsTrial            bool         `db:"is_trial" json:"is_trial"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}

// LessonFilter captures list filters for lessons.
type LessonFilter struct {
	Status    *LessonStatus
	StudentID string
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
