package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Result cache. TTL of 0 disables caching entirely.
	CacheTTLSeconds int `mapstructure:"CACHE_TTL_SECONDS"`

	// Alert thresholds. The defaults below are the documented operating
	// points; every one can be overridden per deployment.
	BedOccupancyAlertPct     float64 `mapstructure:"BED_OCCUPANCY_ALERT_PCT"`
	DoctorUtilizationCeiling float64 `mapstructure:"DOCTOR_UTILIZATION_CEILING_PCT"`
	LongStayDays             float64 `mapstructure:"LONG_STAY_DAYS"`
	EmergencySurgeMultiplier float64 `mapstructure:"EMERGENCY_SURGE_MULTIPLIER"`
	ShortageHourCount        int     `mapstructure:"SHORTAGE_HOUR_COUNT"`

	// Engine tuning.
	MovingAverageWindow int  `mapstructure:"MOVING_AVERAGE_WINDOW"`
	TransferAsScheduled bool `mapstructure:"TRANSFER_AS_SCHEDULED"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("BED_OCCUPANCY_ALERT_PCT", 85)
	v.SetDefault("DOCTOR_UTILIZATION_CEILING_PCT", 90)
	v.SetDefault("LONG_STAY_DAYS", 14)
	v.SetDefault("EMERGENCY_SURGE_MULTIPLIER", 2.0)
	v.SetDefault("SHORTAGE_HOUR_COUNT", 3)
	v.SetDefault("MOVING_AVERAGE_WINDOW", 7)
	v.SetDefault("TRANSFER_AS_SCHEDULED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("CACHE_TTL_SECONDS")
	v.BindEnv("BED_OCCUPANCY_ALERT_PCT")
	v.BindEnv("DOCTOR_UTILIZATION_CEILING_PCT")
	v.BindEnv("LONG_STAY_DAYS")
	v.BindEnv("EMERGENCY_SURGE_MULTIPLIER")
	v.BindEnv("SHORTAGE_HOUR_COUNT")
	v.BindEnv("MOVING_AVERAGE_WINDOW")
	v.BindEnv("TRANSFER_AS_SCHEDULED")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration can produce meaningful analytics.
// Thresholds are percentages of capacity; a surge multiplier below 1 would
// alert on every ordinary day, and a non-positive moving-average window has
// no defined smoothing behavior.
func (c *Config) Validate() error {
	if c.BedOccupancyAlertPct <= 0 || c.BedOccupancyAlertPct > 100 {
		return fmt.Errorf("BED_OCCUPANCY_ALERT_PCT must be in (0, 100], got %v", c.BedOccupancyAlertPct)
	}
	if c.DoctorUtilizationCeiling <= 0 || c.DoctorUtilizationCeiling > 100 {
		return fmt.Errorf("DOCTOR_UTILIZATION_CEILING_PCT must be in (0, 100], got %v", c.DoctorUtilizationCeiling)
	}
	if c.LongStayDays <= 0 {
		return fmt.Errorf("LONG_STAY_DAYS must be positive, got %v", c.LongStayDays)
	}
	if c.EmergencySurgeMultiplier < 1 {
		return fmt.Errorf("EMERGENCY_SURGE_MULTIPLIER must be >= 1, got %v", c.EmergencySurgeMultiplier)
	}
	if c.ShortageHourCount < 1 {
		return fmt.Errorf("SHORTAGE_HOUR_COUNT must be >= 1, got %d", c.ShortageHourCount)
	}
	if c.MovingAverageWindow < 1 {
		return fmt.Errorf("MOVING_AVERAGE_WINDOW must be >= 1, got %d", c.MovingAverageWindow)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds)
	}
	return nil
}
