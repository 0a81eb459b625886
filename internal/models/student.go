package models

import "time"

// Student is a dancer. A student may have its own login (UserID) and/or a guardian account.
type Student struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	FullName       string    `db:"full_name" json:"full_name"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	GuardianUserID *string   `db:"guardian_user_id" json:"guardian_user_id,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
