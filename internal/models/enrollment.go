package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive   EnrollmentStatus = "ACTIVE"
	EnrollmentStatusPaused   EnrollmentStatus = "PAUSED"
	EnrollmentStatusFinished EnrollmentStatus = "FINISHED"
)

// Enrollment links a student to a class.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	TenantID  string           `db:"tenant_id" json:"tenant_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	JoinedAt  time.Time        `db:"joined_at" json:"joined_at"`
	LeftAt    *time.Time       `db:"left_at" json:"left_at,omitempty"`
}
