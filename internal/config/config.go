package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/racingline/internal/dtw"
	"github.com/banshee-data/racingline/internal/lap"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/defaults.json"

// Config holds the tunable parameters for capture, driving and evaluation.
// Every field is optional; the Get* accessors fall back to built-in
// defaults so a partial file is always safe to load.
type Config struct {
	// Lap completion during reference capture (frame-skipped, tight).
	ReferenceThreshold *float64 `json:"reference_threshold,omitempty"`
	ReferenceGuard     *int     `json:"reference_guard,omitempty"`

	// Lap completion while driving in real time (loose, guarded).
	DriveThreshold *float64 `json:"drive_threshold,omitempty"`
	DriveGuard     *int     `json:"drive_guard,omitempty"`

	// Session bounds
	SkipFrames *int `json:"skip_frames,omitempty"`
	MaxFrames  *int `json:"max_frames,omitempty"`

	// DTW band radius for run evaluation. Absent means exact.
	DTWRadius *int `json:"dtw_radius,omitempty"`
	// Radius used by the standalone comparison tool; -1 means exact.
	CompareRadius *int `json:"compare_radius,omitempty"`

	// Speed band (km/h) enforced by overriding throttle
	UseSpeedConstraints *bool    `json:"use_speed_constraints,omitempty"`
	MinSpeedKmh         *float64 `json:"min_speed_kmh,omitempty"`
	MaxSpeedKmh         *float64 `json:"max_speed_kmh,omitempty"`

	// Storage
	OutputDir *string `json:"output_dir,omitempty"`
	DBPath    *string `json:"db_path,omitempty"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1MB. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := Empty()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrEmpty loads path when it is non-empty and returns an empty Config
// otherwise.
func LoadOrEmpty(path string) (*Config, error) {
	if path == "" {
		return Empty(), nil
	}
	return Load(path)
}

// MustLoadDefault loads DefaultConfigPath, searching upwards from the
// working directory. Panics if the file cannot be found; intended for tests.
func MustLoadDefault() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.ReferenceThreshold != nil && *c.ReferenceThreshold <= 0 {
		return fmt.Errorf("reference_threshold must be positive, got %f", *c.ReferenceThreshold)
	}
	if c.DriveThreshold != nil && *c.DriveThreshold <= 0 {
		return fmt.Errorf("drive_threshold must be positive, got %f", *c.DriveThreshold)
	}
	if c.ReferenceGuard != nil && *c.ReferenceGuard < 0 {
		return fmt.Errorf("reference_guard must be non-negative, got %d", *c.ReferenceGuard)
	}
	if c.DriveGuard != nil && *c.DriveGuard < 0 {
		return fmt.Errorf("drive_guard must be non-negative, got %d", *c.DriveGuard)
	}
	if c.SkipFrames != nil && *c.SkipFrames < 0 {
		return fmt.Errorf("skip_frames must be non-negative, got %d", *c.SkipFrames)
	}
	if c.MaxFrames != nil && *c.MaxFrames <= 0 {
		return fmt.Errorf("max_frames must be positive, got %d", *c.MaxFrames)
	}
	if c.DTWRadius != nil && *c.DTWRadius < 0 {
		return fmt.Errorf("dtw_radius must be non-negative, got %d", *c.DTWRadius)
	}
	if c.CompareRadius != nil && *c.CompareRadius < -1 {
		return fmt.Errorf("compare_radius must be -1 (exact) or non-negative, got %d", *c.CompareRadius)
	}
	if c.GetMinSpeedKmh() < 0 {
		return fmt.Errorf("min_speed_kmh must be non-negative, got %f", c.GetMinSpeedKmh())
	}
	if c.GetMinSpeedKmh() > c.GetMaxSpeedKmh() {
		return fmt.Errorf("min_speed_kmh (%f) exceeds max_speed_kmh (%f)", c.GetMinSpeedKmh(), c.GetMaxSpeedKmh())
	}
	if c.OutputDir != nil && *c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}

// GetReferenceThreshold returns the reference_threshold value or the default.
func (c *Config) GetReferenceThreshold() float64 {
	if c.ReferenceThreshold == nil {
		return lap.ReferenceCapture().Threshold
	}
	return *c.ReferenceThreshold
}

// GetReferenceGuard returns the reference_guard value or the default.
func (c *Config) GetReferenceGuard() int {
	if c.ReferenceGuard == nil {
		return lap.ReferenceCapture().Guard
	}
	return *c.ReferenceGuard
}

// GetDriveThreshold returns the drive_threshold value or the default.
func (c *Config) GetDriveThreshold() float64 {
	if c.DriveThreshold == nil {
		return lap.AutonomousDrive().Threshold
	}
	return *c.DriveThreshold
}

// GetDriveGuard returns the drive_guard value or the default.
func (c *Config) GetDriveGuard() int {
	if c.DriveGuard == nil {
		return lap.AutonomousDrive().Guard
	}
	return *c.DriveGuard
}

// GetSkipFrames returns the skip_frames value or the default.
func (c *Config) GetSkipFrames() int {
	if c.SkipFrames == nil {
		return 40
	}
	return *c.SkipFrames
}

// GetMaxFrames returns the max_frames value or the default.
func (c *Config) GetMaxFrames() int {
	if c.MaxFrames == nil {
		return 20000
	}
	return *c.MaxFrames
}

// GetCompareRadius returns the compare_radius value or the default.
func (c *Config) GetCompareRadius() int {
	if c.CompareRadius == nil {
		return 10
	}
	return *c.CompareRadius
}

// GetUseSpeedConstraints returns the use_speed_constraints value or the default.
func (c *Config) GetUseSpeedConstraints() bool {
	if c.UseSpeedConstraints == nil {
		return false
	}
	return *c.UseSpeedConstraints
}

// GetMinSpeedKmh returns the min_speed_kmh value or the default.
func (c *Config) GetMinSpeedKmh() float64 {
	if c.MinSpeedKmh == nil {
		return 10
	}
	return *c.MinSpeedKmh
}

// GetMaxSpeedKmh returns the max_speed_kmh value or the default.
func (c *Config) GetMaxSpeedKmh() float64 {
	if c.MaxSpeedKmh == nil {
		return 30
	}
	return *c.MaxSpeedKmh
}

// GetOutputDir returns the output_dir value or the default.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil {
		return "out/map_points"
	}
	return *c.OutputDir
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "runs.db"
	}
	return *c.DBPath
}

// ReferenceDetector returns the lap detector used while capturing a
// reference line.
func (c *Config) ReferenceDetector() lap.Detector {
	return lap.Detector{Threshold: c.GetReferenceThreshold(), Guard: c.GetReferenceGuard()}
}

// DriveDetector returns the lap detector used while a model drives.
func (c *Config) DriveDetector() lap.Detector {
	return lap.Detector{Threshold: c.GetDriveThreshold(), Guard: c.GetDriveGuard()}
}

// EvaluationOptions returns the DTW options for scoring a finished run.
func (c *Config) EvaluationOptions() dtw.Options {
	if c.DTWRadius == nil {
		return dtw.Exact()
	}
	return dtw.Banded(*c.DTWRadius)
}

// CompareOptions returns the DTW options for the comparison tool.
func (c *Config) CompareOptions() dtw.Options {
	return RadiusOptions(c.GetCompareRadius())
}

// RadiusOptions maps a radius flag value to DTW options; negative means exact.
func RadiusOptions(radius int) dtw.Options {
	if radius < 0 {
		return dtw.Exact()
	}
	return dtw.Banded(radius)
}
