package dto

import "time"

// IssueTokenResponse is returned to the teacher screen after issuing a code.
type IssueTokenResponse struct {
	Token      string    `json:"token"`
	ClassID    string    `json:"class_id"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	QRCodePath string    `json:"qr_code_path"`
	SheetPath  string    `json:"sheet_path"`
}

// RedeemAttendanceRequest is submitted by the student-facing screen after scanning.
// StudentID selects one of the guardian's linked students.
type RedeemAttendanceRequest struct {
	Token             string `json:"token" validate:"required,max=256"`
	StudentID         string `json:"student_id" validate:"omitempty,max=64"`
	DeviceFingerprint string `json:"device_fingerprint" validate:"omitempty,max=512"`
	UserAgent         string `json:"-"`
}
