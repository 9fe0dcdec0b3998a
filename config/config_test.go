package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"morning", "09:15", 9, 15, false},
		{"midnight", "00:00", 0, 0, false},
		{"late evening", "23:59", 23, 59, false},
		{"default cutoff", "22:30", 22, 30, false},
		{"hour out of range", "24:00", 0, 0, true},
		{"minute out of range", "12:60", 0, 0, true},
		{"missing minutes", "12", 0, 0, true},
		{"not a clock", "abc", 0, 0, true},
		{"empty", "", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseClock(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.NotEmpty(t, cfg.DBUrl)
	assert.Equal(t, "23:59", cfg.Scheduler.SweepTime)
	assert.Equal(t, "Asia/Kolkata", cfg.Scheduler.SweepTimezone)
	assert.Equal(t, "22:30", cfg.Scheduler.CertificateCutoff)
	assert.Equal(t, "noop", cfg.Mailer.Provider)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoad_RejectsBadClockValues(t *testing.T) {
	t.Setenv("GO_ENV", "production")

	t.Run("sweep time", func(t *testing.T) {
		t.Setenv("SWEEP_TIME", "25:00")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("certificate cutoff", func(t *testing.T) {
		t.Setenv("CERTIFICATE_CUTOFF", "half past ten")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("timezone", func(t *testing.T) {
		t.Setenv("SWEEP_TIMEZONE", "Mars/Olympus_Mons")
		_, err := Load()
		require.Error(t, err)
	})
}
