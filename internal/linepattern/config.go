package linepattern

import (
	"errors"
	"fmt"

	"github.com/banshee-data/line-detector/internal/config"
)

// ErrInvalidConfig is returned by New when a Config fails validation.
var ErrInvalidConfig = errors.New("linepattern: invalid config")

// Config holds the tracker and classifier thresholds. Distances are in
// millimetres, drifts in millimetres of offset per millimetre travelled.
type Config struct {
	// Tracker
	MatchGate           float64 // Largest |predicted - detected| accepted for a match
	NoiseGap            float64 // Unmatched distance a feature is still treated as present
	Grace               float64 // Unmatched distance after which a feature is evicted
	Deadband            float64 // |offset| change per step treated as no movement
	StationaryTolerance float64 // Deviation from birth offset that ends stationarity
	ScoreDecay          float64 // Continuity score multiplier per unmatched scan

	// Group shapes
	CenterTolerance   float64 // Middle line of a triple must be this close to centre
	SpacingMin        float64 // Triple spacing lower bound
	SpacingMax        float64 // Triple spacing upper bound
	SymmetryTolerance float64 // Allowed difference between the two triple spacings
	SingleMaxOffset   float64 // A single line must be this close to centre
	SingleMaxDrift    float64 // A single line must drift less than this

	// Classifier
	NoneMinDistance   float64 // Line-free distance that qualifies as NONE
	NoneMinScans      int     // Line-free scan count that qualifies as NONE
	SingleMinDistance float64 // Distance a single line must hold
	BrakeMinDistance  float64 // Distance a triple must hold
	PeriodTolerance   float64 // Relative difference allowed between accelerate periods
	AccelMaxSegment   float64 // Longest group inside an accelerate marker
	NoiseSpan         float64 // Irregular groups this short are dropouts
	JunctionMinSpan   float64 // Distance a branch must keep diverging or converging
	JunctionEntrySpan float64 // Divergence distance that marks junction entry
	JunctionSettleGap float64 // A converging branch must come this close to another line
	DashMin           float64 // Shortest lane marker dash
	DashMax           float64 // Longest lane marker dash
	LaneChangeExit    float64 // Dash-free distance that ends a lane change

	// Stability gate and input checks
	StableScans      int     // Consecutive scans a new candidate needs
	NeutralTolerance float64 // Distance jitter accepted while direction is neutral
}

// DefaultConfig returns the built-in thresholds. They match
// config/tuning.defaults.json.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MatchGate:           cfg.GetMatchGate(),
		NoiseGap:            cfg.GetNoiseGap(),
		Grace:               cfg.GetGrace(),
		Deadband:            cfg.GetDeadband(),
		StationaryTolerance: cfg.GetStationaryTolerance(),
		ScoreDecay:          cfg.GetScoreDecay(),
		CenterTolerance:     cfg.GetCenterTolerance(),
		SpacingMin:          cfg.GetSpacingMin(),
		SpacingMax:          cfg.GetSpacingMax(),
		SymmetryTolerance:   cfg.GetSymmetryTolerance(),
		SingleMaxOffset:     cfg.GetSingleMaxOffset(),
		SingleMaxDrift:      cfg.GetSingleMaxDrift(),
		NoneMinDistance:     cfg.GetNoneMinDistance(),
		NoneMinScans:        cfg.GetNoneMinScans(),
		SingleMinDistance:   cfg.GetSingleMinDistance(),
		BrakeMinDistance:    cfg.GetBrakeMinDistance(),
		PeriodTolerance:     cfg.GetPeriodTolerance(),
		AccelMaxSegment:     cfg.GetAccelMaxSegment(),
		NoiseSpan:           cfg.GetNoiseSpan(),
		JunctionMinSpan:     cfg.GetJunctionMinSpan(),
		JunctionEntrySpan:   cfg.GetJunctionEntrySpan(),
		JunctionSettleGap:   cfg.GetJunctionSettleGap(),
		DashMin:             cfg.GetDashMin(),
		DashMax:             cfg.GetDashMax(),
		LaneChangeExit:      cfg.GetLaneChangeExit(),
		StableScans:         cfg.GetStableScans(),
		NeutralTolerance:    cfg.GetNeutralTolerance(),
	}
}

// Validate reports the first inconsistent threshold.
func (c Config) Validate() error {
	switch {
	case c.MatchGate <= 0:
		return fmt.Errorf("%w: match gate must be positive, got %g", ErrInvalidConfig, c.MatchGate)
	case c.NoiseGap < 0 || c.NoiseGap > c.Grace:
		return fmt.Errorf("%w: noise gap %g must be within [0, grace %g]", ErrInvalidConfig, c.NoiseGap, c.Grace)
	case c.ScoreDecay <= 0 || c.ScoreDecay > 1:
		return fmt.Errorf("%w: score decay must be in (0, 1], got %g", ErrInvalidConfig, c.ScoreDecay)
	case c.SpacingMin > c.SpacingMax:
		return fmt.Errorf("%w: spacing min %g exceeds max %g", ErrInvalidConfig, c.SpacingMin, c.SpacingMax)
	case c.DashMin > c.DashMax:
		return fmt.Errorf("%w: dash min %g exceeds max %g", ErrInvalidConfig, c.DashMin, c.DashMax)
	case c.StableScans < 1:
		return fmt.Errorf("%w: stable scans must be at least 1, got %d", ErrInvalidConfig, c.StableScans)
	case c.NoneMinScans < 1:
		return fmt.Errorf("%w: none min scans must be at least 1, got %d", ErrInvalidConfig, c.NoneMinScans)
	case c.PeriodTolerance < 0:
		return fmt.Errorf("%w: period tolerance must be non-negative, got %g", ErrInvalidConfig, c.PeriodTolerance)
	case c.NeutralTolerance < 0:
		return fmt.Errorf("%w: neutral tolerance must be non-negative, got %g", ErrInvalidConfig, c.NeutralTolerance)
	}
	return nil
}
