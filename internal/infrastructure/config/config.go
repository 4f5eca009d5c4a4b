// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/receipted/receipted-backend/internal/domain/analyzer"
	"github.com/receipted/receipted-backend/internal/domain/matcher"
)

// Config represents the entire application configuration.
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Matching      MatchingConfig      `yaml:"matching"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MatchingConfig exposes the scorer and auto-match knobs. Zero values fall
// back to matcher.DefaultConfig so a config file only overrides what it
// names.
type MatchingConfig struct {
	AmountExactTolerance float64 `yaml:"amount_exact_tolerance"`
	AmountCloseBand      float64 `yaml:"amount_close_band"`
	DateCloseDays        int     `yaml:"date_close_days"`
	NoiseFloor           float64 `yaml:"noise_floor"`
	AutoMatchOneField    float64 `yaml:"auto_match_one_field"`
	AutoMatchTwoFields   float64 `yaml:"auto_match_two_fields"`
	AutoMatchThreeFields float64 `yaml:"auto_match_three_fields"`
}

// AnalysisConfig exposes the pattern-analyzer knobs.
type AnalysisConfig struct {
	WindowDays               int `yaml:"window_days"`
	LookbackDays             int `yaml:"lookback_days"`
	MerchantMismatchMinCount int `yaml:"merchant_mismatch_min_count"`
	DateOffsetMinCount       int `yaml:"date_offset_min_count"`
	AmountVarianceMinCount   int `yaml:"amount_variance_min_count"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECEIPTED_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("RECEIPTED_DB_PATH", "receipted.db"),
		},
		Server: ServerConfig{
			Port: getEnvInt("RECEIPTED_PORT", 8080),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment
// variables.
func LoadOrEnv(path string) *Config {
	if path == "" {
		path = "config.yaml"
	}
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// MatcherConfig merges the file overrides onto matcher.DefaultConfig.
func (c *Config) MatcherConfig() matcher.Config {
	cfg := matcher.DefaultConfig()
	if c.Matching.AmountExactTolerance > 0 {
		cfg.AmountExactTolerance = c.Matching.AmountExactTolerance
	}
	if c.Matching.AmountCloseBand > 0 {
		cfg.AmountCloseBand = c.Matching.AmountCloseBand
	}
	if c.Matching.DateCloseDays > 0 {
		cfg.DateCloseDays = c.Matching.DateCloseDays
	}
	if c.Matching.NoiseFloor > 0 {
		cfg.NoiseFloor = c.Matching.NoiseFloor
	}
	if c.Matching.AutoMatchOneField > 0 {
		cfg.AutoMatchOneField = c.Matching.AutoMatchOneField
	}
	if c.Matching.AutoMatchTwoFields > 0 {
		cfg.AutoMatchTwoFields = c.Matching.AutoMatchTwoFields
	}
	if c.Matching.AutoMatchThreeFields > 0 {
		cfg.AutoMatchThreeFields = c.Matching.AutoMatchThreeFields
	}
	return cfg
}

// AnalyzerConfig merges the file overrides onto analyzer.DefaultConfig.
func (c *Config) AnalyzerConfig() analyzer.Config {
	cfg := analyzer.DefaultConfig()
	if c.Analysis.WindowDays > 0 {
		cfg.WindowDays = c.Analysis.WindowDays
	}
	if c.Analysis.LookbackDays > 0 {
		cfg.LookbackDays = c.Analysis.LookbackDays
	}
	if c.Analysis.MerchantMismatchMinCount > 0 {
		cfg.MerchantMismatchMinCount = c.Analysis.MerchantMismatchMinCount
	}
	if c.Analysis.DateOffsetMinCount > 0 {
		cfg.DateOffsetMinCount = c.Analysis.DateOffsetMinCount
	}
	if c.Analysis.AmountVarianceMinCount > 0 {
		cfg.AmountVarianceMinCount = c.Analysis.AmountVarianceMinCount
	}
	return cfg
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback
// default.
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
