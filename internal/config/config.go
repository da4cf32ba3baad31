package config

import (
	"os"
	"strconv"

	"fairlens/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Analysis AnalysisConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig holds audit persistence settings. An empty URL disables
// persistence; analysis results are then returned to the caller only.
type DatabaseConfig struct {
	URL string
}

// AnalysisConfig holds the default budgets and thresholds for the fairness
// engines. Individual requests may override the budgets.
type AnalysisConfig struct {
	FairnessThreshold float64
	GlobalIterations  int
	LocalNeighbors    int
	Seed              int64
	TopKNeurons       int
	PerturbationScale float64
	DedupEpsilon      float64
	MaxSamples        int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8765"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Analysis: AnalysisConfig{
			FairnessThreshold: getEnvFloatOrDefault("FAIRNESS_THRESHOLD", 0.1),
			GlobalIterations:  getEnvIntOrDefault("GLOBAL_ITERATIONS", 100),
			LocalNeighbors:    getEnvIntOrDefault("LOCAL_NEIGHBORS", 50),
			Seed:              int64(getEnvIntOrDefault("SEARCH_SEED", 42)),
			TopKNeurons:       getEnvIntOrDefault("TOP_K_NEURONS", 5),
			PerturbationScale: getEnvFloatOrDefault("PERTURBATION_SCALE", 0.3),
			DedupEpsilon:      getEnvFloatOrDefault("DEDUP_EPSILON", 1e-3),
			MaxSamples:        getEnvIntOrDefault("MAX_SAMPLES", 1000),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Analysis.FairnessThreshold <= 0 {
		return errors.ConfigInvalid("fairness threshold must be positive")
	}
	if config.Analysis.GlobalIterations < 0 {
		return errors.ConfigInvalid("global iterations must be non-negative")
	}
	if config.Analysis.LocalNeighbors < 0 {
		return errors.ConfigInvalid("local neighbors must be non-negative")
	}
	if config.Analysis.TopKNeurons <= 0 {
		return errors.ConfigInvalid("top-k neurons must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
