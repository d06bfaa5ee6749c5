// Package config provides configuration management for FaceGate.
// Configuration is read from YAML files with sensible defaults; a .env
// file or environment variables may override selected paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all FaceGate configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Quality     QualityConfig     `yaml:"quality"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CameraConfig holds camera and capture loop settings.
type CameraConfig struct {
	Device          string        `yaml:"device"`
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	FrontFacing     bool          `yaml:"front_facing"`
	CaptureInterval time.Duration `yaml:"capture_interval"`
}

// QualityConfig holds image quality gate thresholds.
type QualityConfig struct {
	MinBrightness float64 `yaml:"min_brightness"`
	MaxBrightness float64 `yaml:"max_brightness"`
	MinSharpness  float64 `yaml:"min_sharpness"`
}

// ExtractorConfig holds embedding extraction settings.
type ExtractorConfig struct {
	ModelPath   string `yaml:"model_path"`
	CropPadding int    `yaml:"crop_padding"`
}

// RecognitionConfig holds face matching settings.
type RecognitionConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DetectorModelPath   string  `yaml:"detector_model_path"`
}

// EnrollmentConfig holds multi-pose enrollment settings.
type EnrollmentConfig struct {
	RequiredFramesPerPosition int `yaml:"required_frames_per_position"`
	MinFramesPerPosition      int `yaml:"min_frames_per_position"`
}

// StorageConfig holds identity store settings.
type StorageConfig struct {
	Backend           string `yaml:"backend"` // "file" or "sqlite"
	Path              string `yaml:"path"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facegate")
	return &Config{
		Camera: CameraConfig{
			Device:          "/dev/video0",
			Width:           640,
			Height:          480,
			FrontFacing:     true,
			CaptureInterval: 500 * time.Millisecond,
		},
		Quality: QualityConfig{
			MinBrightness: 50,
			MaxBrightness: 200,
			MinSharpness:  100,
		},
		Extractor: ExtractorConfig{
			ModelPath:   filepath.Join(dataDir, "models/mobilefacenet.onnx"),
			CropPadding: 20,
		},
		Recognition: RecognitionConfig{
			SimilarityThreshold: 0.8,
			DetectorModelPath:   filepath.Join(dataDir, "models/yunet.onnx"),
		},
		Enrollment: EnrollmentConfig{
			RequiredFramesPerPosition: 3,
			MinFramesPerPosition:      2,
		},
		Storage: StorageConfig{
			Backend:           "file",
			Path:              filepath.Join(dataDir, "faces.json"),
			EncryptionEnabled: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "facegate.log"),
		},
	}
}

// Load loads configuration from the specified YAML file on top of defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	config.applyEnv()
	return config, nil
}

// LoadDefault tries to load configuration from the default locations,
// falling back to defaults when no file exists. A .env file in the working
// directory is merged into the environment first.
func LoadDefault() (*Config, error) {
	_ = godotenv.Load()

	if _, err := os.Stat("/etc/facegate/facegate.yaml"); err == nil {
		return Load("/etc/facegate/facegate.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/facegate/facegate.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides selected fields from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("FACEGATE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("FACEGATE_MODEL_PATH"); v != "" {
		c.Extractor.ModelPath = v
	}
	if v := os.Getenv("FACEGATE_DETECTOR_MODEL_PATH"); v != "" {
		c.Recognition.DetectorModelPath = v
	}
	if v := os.Getenv("FACEGATE_CAMERA_DEVICE"); v != "" {
		c.Camera.Device = v
	}
	if v := os.Getenv("FACEGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Camera.Device = ExpandPath(c.Camera.Device)
	c.Extractor.ModelPath = ExpandPath(c.Extractor.ModelPath)
	c.Recognition.DetectorModelPath = ExpandPath(c.Recognition.DetectorModelPath)
	c.Storage.Path = ExpandPath(c.Storage.Path)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.CaptureInterval <= 0 {
		return fmt.Errorf("capture_interval must be positive, got %s", c.Camera.CaptureInterval)
	}

	if c.Quality.MinBrightness < 0 || c.Quality.MaxBrightness > 255 {
		return fmt.Errorf("brightness thresholds must be within [0,255], got %.1f..%.1f",
			c.Quality.MinBrightness, c.Quality.MaxBrightness)
	}
	if c.Quality.MinBrightness >= c.Quality.MaxBrightness {
		return fmt.Errorf("min_brightness %.1f must be below max_brightness %.1f",
			c.Quality.MinBrightness, c.Quality.MaxBrightness)
	}
	if c.Quality.MinSharpness < 0 {
		return fmt.Errorf("min_sharpness must be non-negative, got %.1f", c.Quality.MinSharpness)
	}

	if c.Extractor.CropPadding < 0 {
		return fmt.Errorf("crop_padding must be non-negative, got %d", c.Extractor.CropPadding)
	}

	if c.Recognition.SimilarityThreshold < 0 || c.Recognition.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1, got %f",
			c.Recognition.SimilarityThreshold)
	}

	if c.Enrollment.MinFramesPerPosition <= 0 {
		return fmt.Errorf("min_frames_per_position must be positive, got %d",
			c.Enrollment.MinFramesPerPosition)
	}
	if c.Enrollment.RequiredFramesPerPosition < c.Enrollment.MinFramesPerPosition {
		return fmt.Errorf("required_frames_per_position %d must not be below min_frames_per_position %d",
			c.Enrollment.RequiredFramesPerPosition, c.Enrollment.MinFramesPerPosition)
	}

	if c.Storage.Backend != "file" && c.Storage.Backend != "sqlite" {
		return fmt.Errorf("invalid storage backend: %s (must be file or sqlite)", c.Storage.Backend)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// EnsureDirectories creates the directories needed for storage and logging.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(filepath.Dir(c.Storage.Path), 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}
