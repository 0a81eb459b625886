package models

import (
	"fmt"
	"time"
)

// Class is a recurring dance class run by a teacher.
type Class struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	Name         string    `db:"name" json:"name"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	ScheduleTime *string   `db:"schedule_time" json:"schedule_time,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StartOn returns the class start on the calendar day of day, in day's location.
// ok is false when the class has no usable schedule time.
func (c Class) StartOn(day time.Time) (time.Time, bool) {
	if c.ScheduleTime == nil || *c.ScheduleTime == "" {
		return time.Time{}, false
	}
	var hour, minute int
	if _, err := fmt.Sscanf(*c.ScheduleTime, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location()), true
}
