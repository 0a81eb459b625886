package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleTeacher  UserRole = "TEACHER"
	RoleGuardian UserRole = "GUARDIAN"
	RoleStudent  UserRole = "STUDENT"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalisePage clamps page and size into the accepted range.
func NormalisePage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > max {
		size = def
	}
	return page, size
}
