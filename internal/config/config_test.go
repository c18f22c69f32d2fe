package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, key, val string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, val)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost:5432/hospimetrics")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.BedOccupancyAlertPct != 85 {
		t.Errorf("BedOccupancyAlertPct = %v, want 85", cfg.BedOccupancyAlertPct)
	}
	if cfg.DoctorUtilizationCeiling != 90 {
		t.Errorf("DoctorUtilizationCeiling = %v, want 90", cfg.DoctorUtilizationCeiling)
	}
	if cfg.LongStayDays != 14 {
		t.Errorf("LongStayDays = %v, want 14", cfg.LongStayDays)
	}
	if cfg.ShortageHourCount != 3 {
		t.Errorf("ShortageHourCount = %d, want 3", cfg.ShortageHourCount)
	}
	if cfg.MovingAverageWindow != 7 {
		t.Errorf("MovingAverageWindow = %d, want 7", cfg.MovingAverageWindow)
	}
	if !cfg.TransferAsScheduled {
		t.Error("TransferAsScheduled should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost:5432/hospimetrics")
	setEnv(t, "BED_OCCUPANCY_ALERT_PCT", "92.5")
	setEnv(t, "MOVING_AVERAGE_WINDOW", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BedOccupancyAlertPct != 92.5 {
		t.Errorf("BedOccupancyAlertPct = %v, want 92.5", cfg.BedOccupancyAlertPct)
	}
	if cfg.MovingAverageWindow != 14 {
		t.Errorf("MovingAverageWindow = %d, want 14", cfg.MovingAverageWindow)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			BedOccupancyAlertPct:     85,
			DoctorUtilizationCeiling: 90,
			LongStayDays:             14,
			EmergencySurgeMultiplier: 2,
			ShortageHourCount:        3,
			MovingAverageWindow:      7,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"occupancy over 100", func(c *Config) { c.BedOccupancyAlertPct = 120 }},
		{"occupancy zero", func(c *Config) { c.BedOccupancyAlertPct = 0 }},
		{"utilization zero", func(c *Config) { c.DoctorUtilizationCeiling = 0 }},
		{"long stay zero", func(c *Config) { c.LongStayDays = 0 }},
		{"surge multiplier below 1", func(c *Config) { c.EmergencySurgeMultiplier = 0.5 }},
		{"shortage count zero", func(c *Config) { c.ShortageHourCount = 0 }},
		{"window zero", func(c *Config) { c.MovingAverageWindow = 0 }},
		{"negative TTL", func(c *Config) { c.CacheTTLSeconds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
