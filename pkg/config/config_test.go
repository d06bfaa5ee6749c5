package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Camera.CaptureInterval != 500*time.Millisecond {
		t.Errorf("capture interval = %s, want 500ms", cfg.Camera.CaptureInterval)
	}
	if cfg.Quality.MinBrightness != 50 || cfg.Quality.MaxBrightness != 200 {
		t.Errorf("brightness window = %.0f..%.0f, want 50..200",
			cfg.Quality.MinBrightness, cfg.Quality.MaxBrightness)
	}
	if cfg.Quality.MinSharpness != 100 {
		t.Errorf("min sharpness = %.0f, want 100", cfg.Quality.MinSharpness)
	}
	if cfg.Recognition.SimilarityThreshold != 0.8 {
		t.Errorf("similarity threshold = %v, want 0.8", cfg.Recognition.SimilarityThreshold)
	}
	if cfg.Enrollment.RequiredFramesPerPosition != 3 || cfg.Enrollment.MinFramesPerPosition != 2 {
		t.Errorf("enrollment frames = %d/%d, want 3/2",
			cfg.Enrollment.RequiredFramesPerPosition, cfg.Enrollment.MinFramesPerPosition)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("storage backend = %q, want file", cfg.Storage.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "zero width", mutate: func(c *Config) { c.Camera.Width = 0 }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Camera.CaptureInterval = 0 }, wantErr: true},
		{name: "negative brightness", mutate: func(c *Config) { c.Quality.MinBrightness = -1 }, wantErr: true},
		{name: "brightness above 255", mutate: func(c *Config) { c.Quality.MaxBrightness = 300 }, wantErr: true},
		{name: "inverted brightness window", mutate: func(c *Config) {
			c.Quality.MinBrightness = 200
			c.Quality.MaxBrightness = 50
		}, wantErr: true},
		{name: "negative sharpness", mutate: func(c *Config) { c.Quality.MinSharpness = -5 }, wantErr: true},
		{name: "negative padding", mutate: func(c *Config) { c.Extractor.CropPadding = -1 }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Recognition.SimilarityThreshold = 1.5 }, wantErr: true},
		{name: "zero min frames", mutate: func(c *Config) { c.Enrollment.MinFramesPerPosition = 0 }, wantErr: true},
		{name: "required below min", mutate: func(c *Config) {
			c.Enrollment.RequiredFramesPerPosition = 1
			c.Enrollment.MinFramesPerPosition = 2
		}, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "redis" }, wantErr: true},
		{name: "sqlite backend", mutate: func(c *Config) { c.Storage.Backend = "sqlite" }, wantErr: false},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facegate.yaml")
	content := `
camera:
  device: /dev/video2
  width: 1280
  height: 720
quality:
  min_brightness: 40
storage:
  backend: sqlite
  path: /tmp/faces.db
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.Device != "/dev/video2" {
		t.Errorf("device = %q, want /dev/video2", cfg.Camera.Device)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("resolution = %dx%d, want 1280x720", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Quality.MinBrightness != 40 {
		t.Errorf("min brightness = %v, want 40 from file", cfg.Quality.MinBrightness)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Quality.MaxBrightness != 200 {
		t.Errorf("max brightness = %v, want default 200", cfg.Quality.MaxBrightness)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != "/tmp/faces.db" {
		t.Errorf("storage = %s %s, want sqlite /tmp/faces.db", cfg.Storage.Backend, cfg.Storage.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("Load() of missing file returned no error")
	}
	if cfg == nil {
		t.Fatal("Load() of missing file returned nil config")
	}
	if cfg.Camera.Width != 640 {
		t.Error("Load() of missing file did not return defaults")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("camera: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() of invalid YAML returned no error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACEGATE_STORAGE_PATH", "/custom/faces.json")
	t.Setenv("FACEGATE_CAMERA_DEVICE", "/dev/video9")
	t.Setenv("FACEGATE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnv()

	if cfg.Storage.Path != "/custom/faces.json" {
		t.Errorf("storage path = %q, want env override", cfg.Storage.Path)
	}
	if cfg.Camera.Device != "/dev/video9" {
		t.Errorf("camera device = %q, want env override", cfg.Camera.Device)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want env override", cfg.Logging.Level)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandPath("~/faces.json"); got != filepath.Join(home, "faces.json") {
		t.Errorf("ExpandPath(~/faces.json) = %q", got)
	}
	if got := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("ExpandPath(/absolute/path) = %q", got)
	}

	t.Setenv("FACEGATE_TEST_DIR", "/data")
	if got := ExpandPath("$FACEGATE_TEST_DIR/faces.json"); got != "/data/faces.json" {
		t.Errorf("ExpandPath with env var = %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "store", "faces.json")
	cfg.Logging.File = filepath.Join(dir, "logs", "facegate.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() error = %v", err)
	}
	for _, sub := range []string{"store", "logs"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", sub)
		}
	}
}
