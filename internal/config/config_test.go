package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(200), cfg.Reconciliation.FeeMismatchMin)
	assert.Equal(t, int64(500), cfg.Reconciliation.FeeMismatchMax)
	assert.Equal(t, int64(1), cfg.Reconciliation.RoundingTolerance)
	assert.Equal(t, 2, cfg.Reconciliation.WindowDays)
	assert.True(t, cfg.Settlement.GSTPercent.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, time.Hour, cfg.Dedup.TTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RECON_WORKERS", "8")
	t.Setenv("SETTLEMENT_RESERVE_PERCENT", "7.5")
	t.Setenv("DEDUP_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example.com, https://admin.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8, cfg.Reconciliation.Workers)
	assert.True(t, cfg.Settlement.ReservePercent.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, 30*time.Minute, cfg.Dedup.TTL)
	assert.Equal(t, []string{"https://ops.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoadFromEnv_FileThenEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9000
reconciliation:
  fee_mismatch_max: 800
  workers: 2
dedup:
  ttl: 2h
settlement:
  gst_percent: "12"
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RECON_WORKERS", "6")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, int64(800), cfg.Reconciliation.FeeMismatchMax)
	assert.Equal(t, int64(200), cfg.Reconciliation.FeeMismatchMin, "unset keys keep defaults")
	assert.Equal(t, 6, cfg.Reconciliation.Workers, "env wins over file")
	assert.Equal(t, 2*time.Hour, cfg.Dedup.TTL)
	assert.True(t, cfg.Settlement.GSTPercent.Equal(decimal.NewFromInt(12)))
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing_file", env: map[string]string{"CONFIG_FILE": "/nonexistent/config.yaml"}},
		{name: "bad_rate", env: map[string]string{"SETTLEMENT_GST_PERCENT": "eighteen"}},
		{name: "rate_out_of_range", env: map[string]string{"SETTLEMENT_TDS_PERCENT": "101"}},
		{name: "empty_fee_band", env: map[string]string{"RECON_FEE_MISMATCH_MAX": "200"}},
		{name: "tolerance_inside_band", env: map[string]string{"RECON_ROUNDING_TOLERANCE": "250"}},
		{name: "zero_workers", env: map[string]string{"RECON_WORKERS": "0"}},
		{name: "zero_dedup_ttl", env: map[string]string{"DEDUP_TTL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "recon", Password: "p@ss word", Database: "settlement_recon", SSLMode: "require"}
	assert.Equal(t, "postgres://recon:p%40ss%20word@db:5432/settlement_recon?sslmode=require", db.ConnectionString())
}

func TestLoadTiers(t *testing.T) {
	path := writeFile(t, "tiers.yaml", `
tiers:
  - id: tier-1
    tier_name: Tier 1
    min_volume: 0
    max_volume: 250000000
    commission_percentage: "2.1"
    is_active: true
  - id: tier-4
    tier_name: Tier 4
    min_volume: 1500000001
    commission_percentage: "1.5"
    is_active: true
`)

	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, "tier-1", tiers[0].ID)
	require.NotNil(t, tiers[0].MaxVolume)
	assert.Equal(t, int64(250000000), *tiers[0].MaxVolume)
	assert.True(t, tiers[0].CommissionPercentage.Equal(decimal.RequireFromString("2.1")))
	assert.Nil(t, tiers[1].MaxVolume)
}

func TestValidateTiers(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "duplicate_id", body: "tiers:\n  - {id: a, min_volume: 0}\n  - {id: a, min_volume: 5}\n", wantErr: true},
		{name: "missing_id", body: "tiers:\n  - {tier_name: x, min_volume: 0}\n", wantErr: true},
		{name: "inverted_bounds", body: "tiers:\n  - {id: a, min_volume: 20, max_volume: 10}\n", wantErr: true},
		{name: "negative_commission", body: "tiers:\n  - {id: a, min_volume: 0, commission_percentage: \"-1\"}\n", wantErr: true},
		{name: "overlap_allowed", body: "tiers:\n  - {id: a, min_volume: 0, max_volume: 10}\n  - {id: b, min_volume: 5}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTiers(writeFile(t, "tiers.yaml", tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
