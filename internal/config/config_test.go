package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/racingline/internal/lap"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()

	if got := cfg.GetReferenceThreshold(); got != 0.5 {
		t.Errorf("GetReferenceThreshold() = %f, want 0.5", got)
	}
	if got := cfg.GetReferenceGuard(); got != 0 {
		t.Errorf("GetReferenceGuard() = %d, want 0", got)
	}
	if got := cfg.GetDriveThreshold(); got != 1.0 {
		t.Errorf("GetDriveThreshold() = %f, want 1.0", got)
	}
	if got := cfg.GetDriveGuard(); got != 100 {
		t.Errorf("GetDriveGuard() = %d, want 100", got)
	}
	if got := cfg.GetSkipFrames(); got != 40 {
		t.Errorf("GetSkipFrames() = %d, want 40", got)
	}
	if got := cfg.GetMaxFrames(); got != 20000 {
		t.Errorf("GetMaxFrames() = %d, want 20000", got)
	}
	if got := cfg.GetCompareRadius(); got != 10 {
		t.Errorf("GetCompareRadius() = %d, want 10", got)
	}
	if cfg.GetUseSpeedConstraints() {
		t.Error("GetUseSpeedConstraints() = true, want false")
	}
	if cfg.GetMinSpeedKmh() != 10 || cfg.GetMaxSpeedKmh() != 30 {
		t.Errorf("speed band = [%f, %f], want [10, 30]", cfg.GetMinSpeedKmh(), cfg.GetMaxSpeedKmh())
	}
	if got := cfg.GetOutputDir(); got != "out/map_points" {
		t.Errorf("GetOutputDir() = %q", got)
	}
	if got := cfg.GetDBPath(); got != "runs.db" {
		t.Errorf("GetDBPath() = %q", got)
	}
	if !cfg.EvaluationOptions().IsExact() {
		t.Error("EvaluationOptions() should be exact when dtw_radius is unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefault()
	empty := Empty()

	if cfg.GetReferenceThreshold() != empty.GetReferenceThreshold() ||
		cfg.GetDriveThreshold() != empty.GetDriveThreshold() ||
		cfg.GetDriveGuard() != empty.GetDriveGuard() ||
		cfg.GetSkipFrames() != empty.GetSkipFrames() ||
		cfg.GetMaxFrames() != empty.GetMaxFrames() ||
		cfg.GetCompareRadius() != empty.GetCompareRadius() ||
		cfg.GetOutputDir() != empty.GetOutputDir() ||
		cfg.GetDBPath() != empty.GetDBPath() {
		t.Errorf("config/defaults.json disagrees with built-in defaults: %+v", cfg)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "drive_threshold": 1.5,
  "drive_guard": 120,
  "dtw_radius": 25,
  "output_dir": "/tmp/runs"
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := lap.Detector{Threshold: 1.5, Guard: 120}
	if got := cfg.DriveDetector(); got != want {
		t.Errorf("DriveDetector() = %+v, want %+v", got, want)
	}
	if got := cfg.ReferenceDetector(); got != lap.ReferenceCapture() {
		t.Errorf("ReferenceDetector() = %+v, want preset", got)
	}
	opts := cfg.EvaluationOptions()
	if opts.IsExact() || *opts.Radius != 25 {
		t.Errorf("EvaluationOptions() = %+v, want radius 25", opts)
	}
	if cfg.GetOutputDir() != "/tmp/runs" {
		t.Errorf("GetOutputDir() = %q", cfg.GetOutputDir())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, "must have .json extension"},
		{"bad json", "cfg.json", `{"drive_guard": }`, "failed to parse"},
		{"unknown key", "cfg.json", `{"drive_gaurd": 3}`, "failed to parse"},
		{"negative guard", "cfg.json", `{"drive_guard": -1}`, "drive_guard must be non-negative"},
		{"zero threshold", "cfg.json", `{"reference_threshold": 0}`, "reference_threshold must be positive"},
		{"zero max frames", "cfg.json", `{"max_frames": 0}`, "max_frames must be positive"},
		{"negative dtw radius", "cfg.json", `{"dtw_radius": -3}`, "dtw_radius must be non-negative"},
		{"compare radius below -1", "cfg.json", `{"compare_radius": -2}`, "compare_radius"},
		{"inverted speed band", "cfg.json", `{"min_speed_kmh": 40}`, "exceeds max_speed_kmh"},
		{"empty output dir", "cfg.json", `{"output_dir": ""}`, "output_dir must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrEmpty(t *testing.T) {
	cfg, err := LoadOrEmpty("")
	if err != nil {
		t.Fatalf("LoadOrEmpty(\"\") failed: %v", err)
	}
	if cfg.DriveGuard != nil {
		t.Error("expected empty config")
	}
}

func TestRadiusOptions(t *testing.T) {
	tests := []struct {
		radius    int
		wantExact bool
	}{
		{-1, true},
		{0, false},
		{10, false},
	}
	for _, tt := range tests {
		opts := RadiusOptions(tt.radius)
		if opts.IsExact() != tt.wantExact {
			t.Errorf("RadiusOptions(%d).IsExact() = %v, want %v", tt.radius, opts.IsExact(), tt.wantExact)
		}
		if !tt.wantExact && *opts.Radius != tt.radius {
			t.Errorf("RadiusOptions(%d) radius = %d", tt.radius, *opts.Radius)
		}
	}

	cfg := Empty()
	if *cfg.CompareOptions().Radius != 10 {
		t.Error("CompareOptions() should default to radius 10")
	}
}
