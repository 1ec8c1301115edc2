package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "match_gate_mm": 12,
  "noise_gap_mm": 18,
  "grace_mm": 30,
  "none_min_scans": 6,
  "stable_scans": 3
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.MatchGate == nil || *cfg.MatchGate != 12 {
		t.Errorf("Expected MatchGate 12, got %v", cfg.MatchGate)
	}
	if cfg.GetNoiseGap() != 18 {
		t.Errorf("GetNoiseGap() = %f, want 18", cfg.GetNoiseGap())
	}
	if cfg.GetGrace() != 30 {
		t.Errorf("GetGrace() = %f, want 30", cfg.GetGrace())
	}
	if cfg.GetNoneMinScans() != 6 {
		t.Errorf("GetNoneMinScans() = %d, want 6", cfg.GetNoneMinScans())
	}
	if cfg.GetStableScans() != 3 {
		t.Errorf("GetStableScans() = %d, want 3", cfg.GetStableScans())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "match_gate_mm": "wide"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_values.json")

	if err := os.WriteFile(configPath, []byte(`{"stable_scans": 0}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected validation error for stable_scans 0, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "negative match gate",
			cfg:     &TuningConfig{MatchGate: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "zero score decay",
			cfg:     &TuningConfig{ScoreDecay: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "score decay of one keeps scores",
			cfg:     &TuningConfig{ScoreDecay: ptrFloat64(1)},
			wantErr: false,
		},
		{
			name:    "period tolerance too high",
			cfg:     &TuningConfig{PeriodTolerance: ptrFloat64(1.5)},
			wantErr: true,
		},
		{
			name:    "zero stable scans",
			cfg:     &TuningConfig{StableScans: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "zero none min scans",
			cfg:     &TuningConfig{NoneMinScans: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "spacing min above max",
			cfg:     &TuningConfig{SpacingMin: ptrFloat64(60)},
			wantErr: true,
		},
		{
			name:    "dash bounds inverted",
			cfg:     &TuningConfig{DashMin: ptrFloat64(300), DashMax: ptrFloat64(200)},
			wantErr: true,
		},
		{
			name:    "noise gap beyond grace",
			cfg:     &TuningConfig{NoiseGap: ptrFloat64(30)},
			wantErr: true,
		},
		{
			name:    "noise gap equal to grace",
			cfg:     &TuningConfig{NoiseGap: ptrFloat64(25), Grace: ptrFloat64(25)},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	// Every value in the defaults file must agree with the getter fallbacks.
	empty := EmptyTuningConfig()
	checks := []struct {
		name      string
		got, want float64
	}{
		{"match_gate_mm", cfg.GetMatchGate(), empty.GetMatchGate()},
		{"noise_gap_mm", cfg.GetNoiseGap(), empty.GetNoiseGap()},
		{"grace_mm", cfg.GetGrace(), empty.GetGrace()},
		{"deadband_mm", cfg.GetDeadband(), empty.GetDeadband()},
		{"stationary_tolerance_mm", cfg.GetStationaryTolerance(), empty.GetStationaryTolerance()},
		{"score_decay", cfg.GetScoreDecay(), empty.GetScoreDecay()},
		{"center_tolerance_mm", cfg.GetCenterTolerance(), empty.GetCenterTolerance()},
		{"spacing_min_mm", cfg.GetSpacingMin(), empty.GetSpacingMin()},
		{"spacing_max_mm", cfg.GetSpacingMax(), empty.GetSpacingMax()},
		{"symmetry_tolerance_mm", cfg.GetSymmetryTolerance(), empty.GetSymmetryTolerance()},
		{"single_max_offset_mm", cfg.GetSingleMaxOffset(), empty.GetSingleMaxOffset()},
		{"single_max_drift", cfg.GetSingleMaxDrift(), empty.GetSingleMaxDrift()},
		{"none_min_distance_mm", cfg.GetNoneMinDistance(), empty.GetNoneMinDistance()},
		{"none_min_scans", float64(cfg.GetNoneMinScans()), float64(empty.GetNoneMinScans())},
		{"single_min_distance_mm", cfg.GetSingleMinDistance(), empty.GetSingleMinDistance()},
		{"brake_min_distance_mm", cfg.GetBrakeMinDistance(), empty.GetBrakeMinDistance()},
		{"period_tolerance", cfg.GetPeriodTolerance(), empty.GetPeriodTolerance()},
		{"accel_max_segment_mm", cfg.GetAccelMaxSegment(), empty.GetAccelMaxSegment()},
		{"noise_span_mm", cfg.GetNoiseSpan(), empty.GetNoiseSpan()},
		{"junction_min_span_mm", cfg.GetJunctionMinSpan(), empty.GetJunctionMinSpan()},
		{"junction_entry_span_mm", cfg.GetJunctionEntrySpan(), empty.GetJunctionEntrySpan()},
		{"junction_settle_gap_mm", cfg.GetJunctionSettleGap(), empty.GetJunctionSettleGap()},
		{"dash_min_mm", cfg.GetDashMin(), empty.GetDashMin()},
		{"dash_max_mm", cfg.GetDashMax(), empty.GetDashMax()},
		{"lane_change_exit_mm", cfg.GetLaneChangeExit(), empty.GetLaneChangeExit()},
		{"stable_scans", float64(cfg.GetStableScans()), float64(empty.GetStableScans())},
		{"neutral_tolerance_mm", cfg.GetNeutralTolerance(), empty.GetNeutralTolerance()},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: defaults file has %g, getter default is %g", c.name, c.got, c.want)
		}
	}
	if cfg.MatchGate == nil || cfg.NeutralTolerance == nil {
		t.Error("Expected defaults file to set every field explicitly")
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetMatchGate() != 12 {
		t.Errorf("Expected 12, got %f", cfg.GetMatchGate())
	}
	if cfg.GetStableScans() != 3 {
		t.Errorf("Expected 3, got %d", cfg.GetStableScans())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the brake distance; everything else keeps defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{"brake_min_distance_mm": 200}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	if cfg.GetBrakeMinDistance() != 200 {
		t.Errorf("Expected overridden BrakeMinDistance 200, got %f", cfg.GetBrakeMinDistance())
	}
	if cfg.GetMatchGate() != 15 {
		t.Errorf("Expected default MatchGate 15, got %f", cfg.GetMatchGate())
	}
	if cfg.GetStableScans() != 2 {
		t.Errorf("Expected default StableScans 2, got %d", cfg.GetStableScans())
	}
}

func TestLoadTuningConfigRejectsPathTraversal(t *testing.T) {
	// Path traversal with ".." is allowed since this is a CLI-only flag,
	// but the file must still have a .json extension.
	_, err := LoadTuningConfig("../../etc/passwd")
	if err == nil {
		t.Error("Expected error for non-.json path, got nil")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetLaneChangeExit() != 140 {
		t.Errorf("GetLaneChangeExit() = %f, want 140", cfg.GetLaneChangeExit())
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := &TuningConfig{}

	if cfg.GetMatchGate() != 15 {
		t.Errorf("GetMatchGate() = %f, want 15", cfg.GetMatchGate())
	}
	if cfg.GetScoreDecay() != 0.5 {
		t.Errorf("GetScoreDecay() = %f, want 0.5", cfg.GetScoreDecay())
	}
	if cfg.GetNoneMinScans() != 4 {
		t.Errorf("GetNoneMinScans() = %d, want 4", cfg.GetNoneMinScans())
	}
	if cfg.GetDashMax() != 250 {
		t.Errorf("GetDashMax() = %f, want 250", cfg.GetDashMax())
	}
	if cfg.GetNeutralTolerance() != 1 {
		t.Errorf("GetNeutralTolerance() = %f, want 1", cfg.GetNeutralTolerance())
	}
}
