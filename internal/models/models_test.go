package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttendanceTokenCheckIsInclusive(t *testing.T) {
	issued := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	token := AttendanceToken{ValidFrom: issued.Add(-10 * time.Minute), ValidUntil: issued.Add(15 * time.Minute)}

	assert.Equal(t, WindowOpen, token.Check(token.ValidFrom))
	assert.Equal(t, WindowOpen, token.Check(token.ValidUntil))
	assert.Equal(t, WindowNotYetOpen, token.Check(token.ValidFrom.Add(-time.Millisecond)))
	assert.Equal(t, WindowClosed, token.Check(token.ValidUntil.Add(time.Millisecond)))
}

func TestClassStartOn(t *testing.T) {
	day := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	sched := "18:00"
	start, ok := Class{ScheduleTime: &sched}.StartOn(day)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC), start)

	bad := "late"
	_, ok = Class{ScheduleTime: &bad}.StartOn(day)
	assert.False(t, ok)
	_, ok = Class{}.StartOn(day)
	assert.False(t, ok)
}

func TestProviderKindAndStatusValid(t *testing.T) {
	assert.True(t, ProviderSandbox.Valid())
	assert.False(t, PaymentProviderKind("STRIPE").Valid())
	assert.True(t, ChargeStatusOverdue.Valid())
	assert.False(t, ChargeStatus("refunded").Valid())
	assert.True(t, ChargeStatusPaid.Final())
	assert.True(t, ChargeStatusCancelled.Final())
	assert.False(t, ChargeStatusPending.Final())
	assert.False(t, ChargeStatusOverdue.Final())
}

func TestNormalisePage(t *testing.T) {
	page, size := NormalisePage(0, 500, 20, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)
}
