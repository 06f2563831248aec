// Package config provides configuration loading for the normalization
// pipeline.
//
// Precedence (highest to lowest):
//  1. Environment variables (MAPS_DETECTOR_CONFIDENCE_FLOOR, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/mapsproj/maps/internal/logging"
)

const (
	envPrefix         = "MAPS_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Config is the root configuration.
type Config struct {
	Logging   logging.Config  `koanf:"logging"`
	Detector  DetectorConfig  `koanf:"detector"`
	Profiles  ProfilesConfig  `koanf:"profiles"`
	Consensus ConsensusConfig `koanf:"consensus"`
	Review    ReviewConfig    `koanf:"review"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

// DetectorConfig tunes structure detection.
type DetectorConfig struct {
	// ConfidenceFloor below which no parse case is committed.
	ConfidenceFloor float64 `koanf:"confidence_floor"`
	// CacheSize bounds the signature-keyed detection cache.
	CacheSize int `koanf:"cache_size"`
}

// ProfilesConfig locates mapping profiles.
type ProfilesConfig struct {
	Dir string `koanf:"dir"`
	// Watch enables hot reload on profile file changes.
	Watch bool `koanf:"watch"`
}

// ConsensusConfig tunes annotation clustering.
type ConsensusConfig struct {
	DistanceThreshold   float64 `koanf:"distance_threshold"`
	IgnoreExplicitLinks bool    `koanf:"ignore_explicit_links"`
}

// ReviewConfig tunes routing thresholds.
type ReviewConfig struct {
	MappingConfidence float64 `koanf:"mapping_confidence"`
}

// PipelineConfig tunes batch execution.
type PipelineConfig struct {
	Workers int `koanf:"workers"`
}

// Load reads configuration from the YAML file at path (skipped when path
// is empty or the file does not exist), overlays MAPS_-prefixed
// environment variables, applies defaults, and validates.
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
		} else {
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
			}
			content, err = io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}
	return LoadBytes(content)
}

// LoadBytes builds configuration from raw YAML plus the environment.
func LoadBytes(content []byte) (*Config, error) {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// MAPS_DETECTOR_CONFIDENCE_FLOOR -> detector.confidence_floor:
	// first underscore separates the section, the rest stays a field name.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
// Logging fields default independently, so a config that sets only the
// level still gets the default format and constant fields.
func applyDefaults(cfg *Config) {
	def := logging.NewDefaultConfig()
	if cfg.Logging.Level == "" && cfg.Logging.Format == "" && cfg.Logging.Fields == nil {
		cfg.Logging.Caller = def.Caller
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Format
	}
	if cfg.Logging.Fields == nil {
		cfg.Logging.Fields = def.Fields
	}
	if cfg.Detector.ConfidenceFloor == 0 {
		cfg.Detector.ConfidenceFloor = 0.75
	}
	if cfg.Detector.CacheSize == 0 {
		cfg.Detector.CacheSize = 1024
	}
	if cfg.Profiles.Dir == "" {
		cfg.Profiles.Dir = "profiles"
	}
	if cfg.Consensus.DistanceThreshold == 0 {
		cfg.Consensus.DistanceThreshold = 5.0
	}
	if cfg.Review.MappingConfidence == 0 {
		cfg.Review.MappingConfidence = 0.8
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Detector.ConfidenceFloor < 0 || c.Detector.ConfidenceFloor > 1 {
		return fmt.Errorf("detector.confidence_floor must be in [0,1], got %v", c.Detector.ConfidenceFloor)
	}
	if c.Detector.CacheSize < 1 {
		return fmt.Errorf("detector.cache_size must be >= 1, got %d", c.Detector.CacheSize)
	}
	if c.Consensus.DistanceThreshold <= 0 {
		return fmt.Errorf("consensus.distance_threshold must be > 0, got %v", c.Consensus.DistanceThreshold)
	}
	if c.Review.MappingConfidence < 0 || c.Review.MappingConfidence > 1 {
		return fmt.Errorf("review.mapping_confidence must be in [0,1], got %v", c.Review.MappingConfidence)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	return nil
}
