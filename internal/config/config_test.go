package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// validSecret satisfies the 32-character minimum.
const validSecret = "0123456789abcdef0123456789abcdef"

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "COMPANION_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "COMPANION_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "COMPANION_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			assert.Equal(t, tc.want, getEnv(tc.key, tc.fallback))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "COMPANION_TEST_DUR_UNSET", setVal: nil, fallback: time.Minute, want: time.Minute},
		{name: "parses valid duration", key: "COMPANION_TEST_DUR_VALID", setVal: strPtr("45s"), want: 45 * time.Second},
		{name: "parses compound duration", key: "COMPANION_TEST_DUR_COMPOUND", setVal: strPtr("1h30m"), want: 90 * time.Minute},
		{name: "errors on bare number", key: "COMPANION_TEST_DUR_BARE", setVal: strPtr("30"), wantErr: true},
		{name: "errors on garbage", key: "COMPANION_TEST_DUR_NAN", setVal: strPtr("soon"), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback []string
		want     []string
	}{
		{name: "returns fallback when unset", key: "COMPANION_TEST_LIST_UNSET", setVal: nil, fallback: []string{"a"}, want: []string{"a"}},
		{name: "splits on commas", key: "COMPANION_TEST_LIST_SPLIT", setVal: strPtr("a,b,c"), want: []string{"a", "b", "c"}},
		{name: "trims whitespace and drops empties", key: "COMPANION_TEST_LIST_TRIM", setVal: strPtr(" a , ,b "), want: []string{"a", "b"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			assert.Equal(t, tc.want, getEnvList(tc.key, tc.fallback))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COMPANION_JWT_SECRET", validSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 20*time.Second, cfg.Safety.CapabilityTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Safety.SessionIdleTTL)
	assert.Equal(t, 24*time.Hour, cfg.Safety.CleanupInterval)
	assert.InEpsilon(t, 1.0, cfg.Safety.UserRatePerSecond, 1e-9)
	assert.Equal(t, 5, cfg.Safety.UserBurst)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COMPANION_JWT_SECRET", validSecret)
	t.Setenv("COMPANION_DB_HOST", "db.internal")
	t.Setenv("COMPANION_DB_PORT", "5433")
	t.Setenv("COMPANION_CAPABILITY_TIMEOUT", "5s")
	t.Setenv("COMPANION_USER_RATE_PER_SECOND", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 5*time.Second, cfg.Safety.CapabilityTimeout)
	assert.InEpsilon(t, 0.5, cfg.Safety.UserRatePerSecond, 1e-9)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			env:     map[string]string{"COMPANION_JWT_SECRET": ""},
			wantErr: "COMPANION_JWT_SECRET is required",
		},
		{
			name:    "short jwt secret",
			env:     map[string]string{"COMPANION_JWT_SECRET": "too-short"},
			wantErr: "at least 32 characters",
		},
		{
			name: "db port out of range",
			env: map[string]string{
				"COMPANION_JWT_SECRET": validSecret,
				"COMPANION_DB_PORT":    "70000",
			},
			wantErr: "COMPANION_DB_PORT",
		},
		{
			name: "non-positive capability timeout",
			env: map[string]string{
				"COMPANION_JWT_SECRET":         validSecret,
				"COMPANION_CAPABILITY_TIMEOUT": "-1s",
			},
			wantErr: "COMPANION_CAPABILITY_TIMEOUT",
		},
		{
			name: "slack token without admin channel",
			env: map[string]string{
				"COMPANION_JWT_SECRET":      validSecret,
				"COMPANION_SLACK_BOT_TOKEN": "xoxb-test",
			},
			wantErr: "COMPANION_SLACK_ADMIN_CHANNEL",
		},
		{
			name: "unparseable rate",
			env: map[string]string{
				"COMPANION_JWT_SECRET":           validSecret,
				"COMPANION_USER_RATE_PER_SECOND": "fast",
			},
			wantErr: "COMPANION_USER_RATE_PER_SECOND",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "companion",
		Password: "secret",
		DBName:   "companion_dev",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=companion password=secret dbname=companion_dev sslmode=disable",
		db.DSN(),
	)
}
