package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchObservedWindow(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, 10*time.Minute, cfg.Attendance.ValidBefore)
	assert.Equal(t, 15*time.Minute, cfg.Attendance.ValidAfter)
	assert.Equal(t, AnchorIssuance, cfg.Attendance.AnchorMode)
	assert.Equal(t, 6, cfg.Attendance.SuffixLength)
	assert.Equal(t, 1, cfg.Payments.RetryAttempts)
	assert.Equal(t, "MOCK", cfg.Payments.DefaultProvider)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}

func TestFromViperNormalisesAttendanceSettings(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ATTENDANCE_WINDOW_ANCHOR", " Schedule ")
	v.Set("ATTENDANCE_VALID_BEFORE", "not-a-duration")
	v.Set("ATTENDANCE_TOKEN_SUFFIX_LENGTH", -1)
	v.Set("PAYMENTS_RETRY_ATTEMPTS", 0)
	v.Set("PAYMENTS_GATEWAY_URL", "https://gateway.example/v3/")

	cfg := fromViper(v)
	assert.Equal(t, AnchorSchedule, cfg.Attendance.AnchorMode)
	assert.Equal(t, 10*time.Minute, cfg.Attendance.ValidBefore)
	assert.Equal(t, 6, cfg.Attendance.SuffixLength)
	assert.Equal(t, 1, cfg.Payments.RetryAttempts)
	assert.Equal(t, "https://gateway.example/v3", cfg.Payments.GatewayBaseURL)
}

func TestUnknownAnchorFallsBackToIssuance(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ATTENDANCE_WINDOW_ANCHOR", "lunar")

	assert.Equal(t, AnchorIssuance, fromViper(v).Attendance.AnchorMode)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , ,b "))
}
