package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for line pattern tuning.
// All distances are millimetres of travel or lateral offset; drift values are
// millimetres of lateral movement per millimetre travelled.
type TuningConfig struct {
	// Tracker params
	MatchGate           *float64 `json:"match_gate_mm,omitempty"`
	NoiseGap            *float64 `json:"noise_gap_mm,omitempty"`
	Grace               *float64 `json:"grace_mm,omitempty"`
	Deadband            *float64 `json:"deadband_mm,omitempty"`
	StationaryTolerance *float64 `json:"stationary_tolerance_mm,omitempty"`
	ScoreDecay          *float64 `json:"score_decay,omitempty"`

	// Group shape params
	CenterTolerance   *float64 `json:"center_tolerance_mm,omitempty"`
	SpacingMin        *float64 `json:"spacing_min_mm,omitempty"`
	SpacingMax        *float64 `json:"spacing_max_mm,omitempty"`
	SymmetryTolerance *float64 `json:"symmetry_tolerance_mm,omitempty"`
	SingleMaxOffset   *float64 `json:"single_max_offset_mm,omitempty"`
	SingleMaxDrift    *float64 `json:"single_max_drift,omitempty"`

	// Classifier params
	NoneMinDistance   *float64 `json:"none_min_distance_mm,omitempty"`
	NoneMinScans      *int     `json:"none_min_scans,omitempty"`
	SingleMinDistance *float64 `json:"single_min_distance_mm,omitempty"`
	BrakeMinDistance  *float64 `json:"brake_min_distance_mm,omitempty"`
	PeriodTolerance   *float64 `json:"period_tolerance,omitempty"`
	AccelMaxSegment   *float64 `json:"accel_max_segment_mm,omitempty"`
	NoiseSpan         *float64 `json:"noise_span_mm,omitempty"`
	JunctionMinSpan   *float64 `json:"junction_min_span_mm,omitempty"`
	JunctionEntrySpan *float64 `json:"junction_entry_span_mm,omitempty"`
	JunctionSettleGap *float64 `json:"junction_settle_gap_mm,omitempty"`
	DashMin           *float64 `json:"dash_min_mm,omitempty"`
	DashMax           *float64 `json:"dash_max_mm,omitempty"`
	LaneChangeExit    *float64 `json:"lane_change_exit_mm,omitempty"`

	// Stability gate and input params
	StableScans      *int     `json:"stable_scans,omitempty"`
	NeutralTolerance *float64 `json:"neutral_tolerance_mm,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/replay/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"match_gate_mm", c.MatchGate},
		{"noise_gap_mm", c.NoiseGap},
		{"grace_mm", c.Grace},
		{"deadband_mm", c.Deadband},
		{"stationary_tolerance_mm", c.StationaryTolerance},
		{"center_tolerance_mm", c.CenterTolerance},
		{"spacing_min_mm", c.SpacingMin},
		{"spacing_max_mm", c.SpacingMax},
		{"symmetry_tolerance_mm", c.SymmetryTolerance},
		{"single_max_offset_mm", c.SingleMaxOffset},
		{"single_max_drift", c.SingleMaxDrift},
		{"none_min_distance_mm", c.NoneMinDistance},
		{"single_min_distance_mm", c.SingleMinDistance},
		{"brake_min_distance_mm", c.BrakeMinDistance},
		{"accel_max_segment_mm", c.AccelMaxSegment},
		{"noise_span_mm", c.NoiseSpan},
		{"junction_min_span_mm", c.JunctionMinSpan},
		{"junction_entry_span_mm", c.JunctionEntrySpan},
		{"junction_settle_gap_mm", c.JunctionSettleGap},
		{"dash_min_mm", c.DashMin},
		{"dash_max_mm", c.DashMax},
		{"lane_change_exit_mm", c.LaneChangeExit},
		{"neutral_tolerance_mm", c.NeutralTolerance},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}

	if c.ScoreDecay != nil && (*c.ScoreDecay <= 0 || *c.ScoreDecay > 1) {
		return fmt.Errorf("score_decay must be in (0, 1], got %f", *c.ScoreDecay)
	}
	if c.PeriodTolerance != nil && (*c.PeriodTolerance < 0 || *c.PeriodTolerance > 1) {
		return fmt.Errorf("period_tolerance must be between 0 and 1, got %f", *c.PeriodTolerance)
	}
	if c.StableScans != nil && *c.StableScans < 1 {
		return fmt.Errorf("stable_scans must be at least 1, got %d", *c.StableScans)
	}
	if c.NoneMinScans != nil && *c.NoneMinScans < 1 {
		return fmt.Errorf("none_min_scans must be at least 1, got %d", *c.NoneMinScans)
	}
	if c.GetSpacingMin() > c.GetSpacingMax() {
		return fmt.Errorf("spacing_min_mm (%g) exceeds spacing_max_mm (%g)", c.GetSpacingMin(), c.GetSpacingMax())
	}
	if c.GetDashMin() > c.GetDashMax() {
		return fmt.Errorf("dash_min_mm (%g) exceeds dash_max_mm (%g)", c.GetDashMin(), c.GetDashMax())
	}
	if c.GetNoiseGap() > c.GetGrace() {
		return fmt.Errorf("noise_gap_mm (%g) exceeds grace_mm (%g)", c.GetNoiseGap(), c.GetGrace())
	}

	return nil
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// GetMatchGate returns the largest offset deviation accepted when matching a line to a feature.
func (c *TuningConfig) GetMatchGate() float64 { return getFloat(c.MatchGate, 15) }

// GetNoiseGap returns how far a feature may go unmatched and still count as present.
func (c *TuningConfig) GetNoiseGap() float64 { return getFloat(c.NoiseGap, 15) }

// GetGrace returns the unmatched distance after which a feature is evicted.
func (c *TuningConfig) GetGrace() float64 { return getFloat(c.Grace, 25) }

// GetDeadband returns the per-step |offset| change treated as still.
func (c *TuningConfig) GetDeadband() float64 { return getFloat(c.Deadband, 0.5) }

// GetStationaryTolerance returns how far a feature may stray from its birth offset and stay stationary.
func (c *TuningConfig) GetStationaryTolerance() float64 {
	return getFloat(c.StationaryTolerance, 3)
}

// GetScoreDecay returns the continuity score multiplier applied per unmatched scan.
func (c *TuningConfig) GetScoreDecay() float64 { return getFloat(c.ScoreDecay, 0.5) }

// GetCenterTolerance returns the centre line tolerance for triple groups.
func (c *TuningConfig) GetCenterTolerance() float64 { return getFloat(c.CenterTolerance, 10) }

// GetSpacingMin returns the minimum spacing between lines of a triple group.
func (c *TuningConfig) GetSpacingMin() float64 { return getFloat(c.SpacingMin, 25) }

// GetSpacingMax returns the maximum spacing between lines of a triple group.
func (c *TuningConfig) GetSpacingMax() float64 { return getFloat(c.SpacingMax, 55) }

// GetSymmetryTolerance returns the allowed difference between the two triple spacings.
func (c *TuningConfig) GetSymmetryTolerance() float64 {
	return getFloat(c.SymmetryTolerance, 8)
}

// GetSingleMaxOffset returns the largest offset of a single centred line.
func (c *TuningConfig) GetSingleMaxOffset() float64 { return getFloat(c.SingleMaxOffset, 45) }

// GetSingleMaxDrift returns the largest drift of a single centred line.
func (c *TuningConfig) GetSingleMaxDrift() float64 { return getFloat(c.SingleMaxDrift, 0.2) }

// GetNoneMinDistance returns the line-free distance that qualifies as NONE.
func (c *TuningConfig) GetNoneMinDistance() float64 { return getFloat(c.NoneMinDistance, 20) }

// GetNoneMinScans returns the line-free scan count that qualifies as NONE.
func (c *TuningConfig) GetNoneMinScans() int { return getInt(c.NoneMinScans, 4) }

// GetSingleMinDistance returns the distance a single line must hold.
func (c *TuningConfig) GetSingleMinDistance() float64 {
	return getFloat(c.SingleMinDistance, 30)
}

// GetBrakeMinDistance returns the distance a triple group must hold to qualify as BRAKE.
func (c *TuningConfig) GetBrakeMinDistance() float64 {
	return getFloat(c.BrakeMinDistance, 120)
}

// GetPeriodTolerance returns the allowed relative difference between accelerate periods.
func (c *TuningConfig) GetPeriodTolerance() float64 { return getFloat(c.PeriodTolerance, 0.3) }

// GetAccelMaxSegment returns the longest group allowed within an accelerate marker.
func (c *TuningConfig) GetAccelMaxSegment() float64 {
	return getFloat(c.AccelMaxSegment, 100)
}

// GetNoiseSpan returns the longest irregular group treated as a dropout.
func (c *TuningConfig) GetNoiseSpan() float64 { return getFloat(c.NoiseSpan, 10) }

// GetJunctionMinSpan returns the distance a branch must keep diverging or converging.
func (c *TuningConfig) GetJunctionMinSpan() float64 { return getFloat(c.JunctionMinSpan, 50) }

// GetJunctionEntrySpan returns the divergence distance that marks junction entry.
func (c *TuningConfig) GetJunctionEntrySpan() float64 {
	return getFloat(c.JunctionEntrySpan, 20)
}

// GetJunctionSettleGap returns how close a converging branch must come to another line.
func (c *TuningConfig) GetJunctionSettleGap() float64 {
	return getFloat(c.JunctionSettleGap, 45)
}

// GetDashMin returns the shortest lane marker dash.
func (c *TuningConfig) GetDashMin() float64 { return getFloat(c.DashMin, 50) }

// GetDashMax returns the longest lane marker dash.
func (c *TuningConfig) GetDashMax() float64 { return getFloat(c.DashMax, 250) }

// GetLaneChangeExit returns the dash-free distance that ends a lane change marker.
func (c *TuningConfig) GetLaneChangeExit() float64 {
	return getFloat(c.LaneChangeExit, 140)
}

// GetStableScans returns how many consecutive scans a candidate pattern needs.
func (c *TuningConfig) GetStableScans() int { return getInt(c.StableScans, 2) }

// GetNeutralTolerance returns the distance jitter accepted while direction is neutral.
func (c *TuningConfig) GetNeutralTolerance() float64 {
	return getFloat(c.NeutralTolerance, 1)
}
