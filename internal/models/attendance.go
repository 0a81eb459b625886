package models

import "time"

// AttendanceToken is one QR issuance for a class. Tokens are never updated; they go stale after ValidUntil.
type AttendanceToken struct {
	Token      string    `db:"token" json:"token"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	ValidFrom  time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time `db:"valid_until" json:"valid_until"`
	IssuedBy   string    `db:"issued_by" json:"issued_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// WindowCheck classifies now against the token's inclusive validity bounds.
type WindowCheck int

const (
	WindowOpen WindowCheck = iota
	WindowNotYetOpen
	WindowClosed
)

// Check reports whether now falls inside [ValidFrom, ValidUntil].
func (t AttendanceToken) Check(now time.Time) WindowCheck {
	if now.Before(t.ValidFrom) {
		return WindowNotYetOpen
	}
	if now.After(t.ValidUntil) {
		return WindowClosed
	}
	return WindowOpen
}

// AttendanceRecord is the single check-in of a student for a class on a calendar day.
type AttendanceRecord struct {
	ID                string    `db:"id" json:"id"`
	TenantID          string    `db:"tenant_id" json:"tenant_id"`
	StudentID         string    `db:"student_id" json:"student_id"`
	ClassID           string    `db:"class_id" json:"class_id"`
	AttendanceDate    time.Time `db:"attendance_date" json:"attendance_date"`
	MarkedAt          time.Time `db:"marked_at" json:"marked_at"`
	MarkedBy          string    `db:"marked_by" json:"marked_by"`
	DeviceFingerprint *string   `db:"device_fingerprint" json:"device_fingerprint,omitempty"`
	UserAgent         *string   `db:"user_agent" json:"user_agent,omitempty"`
}

// AttendanceRecordDetail joins the student name for class rosters.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// AttendanceHistoryFilter scopes a student's attendance history.
type AttendanceHistoryFilter struct {
	StudentID string
	ClassID   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
