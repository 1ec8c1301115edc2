package linepattern

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/line-detector/internal/monitoring"
)

// driftWindow is the number of (distance, offset) samples the drift
// regression runs over.
const driftWindow = 5

// Feature is a line believed to be the same physical track marking across
// consecutive scans.
type Feature struct {
	Offset    float64 // Last matched offset (mm)
	Drift     float64 // Lateral movement per mm travelled
	Birth     float64 // Offset when first seen
	FirstSeen float64 // Travelled distance when created
	LastSeen  float64 // Travelled distance of the last match
	Hits      int     // Matched scans, including creation
	Score     float64 // Continuity score: grows on a match, decays while unmatched

	// Movement run. Run > 0 while |Offset| grows (diverging from centre),
	// Run < 0 while it shrinks (converging).
	Run       int8
	RunStart  float64 // Distance at which the current run began
	RunOrigin float64 // Offset at which the current run began

	Stationary bool // Never strayed further than the stationary tolerance from Birth
	Side       Sign // Side relative to the older line beside it, Neutral if unknown

	closed  bool // Left presence; dash bookkeeping done
	samples [driftWindow][2]float64
	nsample int
}

// runSpan is the distance covered by the feature's current movement run.
func (f *Feature) runSpan() float64 { return f.LastSeen - f.RunStart }

// lifetime is the distance over which the feature was matched.
func (f *Feature) lifetime() float64 { return f.LastSeen - f.FirstSeen }

// movementSide is the lateral side the feature's current run moves toward.
func (f *Feature) movementSide() Sign {
	s := Negative
	if f.Offset > f.RunOrigin {
		s = Positive
	}
	if f.Run < 0 {
		s = -s
	}
	return s
}

func (f *Feature) addSample(d, off float64) {
	if f.nsample == driftWindow {
		copy(f.samples[:], f.samples[1:])
		f.nsample--
	}
	f.samples[f.nsample] = [2]float64{d, off}
	f.nsample++
}

// tracker keeps tracked features in creation order.
type tracker struct {
	cfg *Config

	features [MaxFeatures]Feature
	n        int

	assign  assigner
	matches [MaxLines]int
	matched [MaxFeatures]bool
	xs, ys  [driftWindow]float64

	// Completed lane marker dashes since the last reset.
	dashes   int
	dashSeen float64
	dashSide Sign

	evictions int
}

func (t *tracker) reset() {
	t.n = 0
	t.dashes = 0
	t.dashSeen = 0
	t.dashSide = Neutral
}

// update advances the tracker to travelled distance d with the given lines.
func (t *tracker) update(lines []Line, d float64) {
	t.associate(lines, d)
	t.closeDashes(d)
	t.evictStale(d)
	t.assignSides(d)
}

func (t *tracker) predict(f *Feature, d float64) float64 {
	return f.Offset + f.Drift*(d-f.LastSeen)
}

// associate matches lines to features by predicted offset, updates the matched
// features and creates new features for the remaining lines.
func (t *tracker) associate(lines []Line, d float64) {
	nl := len(lines)
	for i := 0; i < nl; i++ {
		for j := 0; j < t.n; j++ {
			c := math.Abs(t.predict(&t.features[j], d) - lines[i].Offset)
			if c > t.cfg.MatchGate {
				c = assignForbidden
			}
			t.assign.cost[i][j] = c
		}
	}
	t.assign.Solve(nl, t.n, t.matches[:nl])

	for j := 0; j < t.n; j++ {
		t.matched[j] = false
	}
	for i := 0; i < nl; i++ {
		if j := t.matches[i]; j >= 0 {
			t.extend(&t.features[j], lines[i].Offset, d)
			t.matched[j] = true
		}
	}
	for j := 0; j < t.n; j++ {
		if !t.matched[j] {
			t.features[j].Score *= t.cfg.ScoreDecay
		}
	}
	for i := 0; i < nl; i++ {
		if t.matches[i] < 0 {
			t.create(lines[i].Offset, d)
		}
	}
}

func (t *tracker) extend(f *Feature, off, d float64) {
	delta := math.Abs(off) - math.Abs(f.Offset)
	switch {
	case delta > t.cfg.Deadband:
		if f.Run <= 0 {
			f.Run, f.RunStart, f.RunOrigin = 1, f.LastSeen, f.Offset
		}
	case delta < -t.cfg.Deadband:
		if f.Run >= 0 {
			f.Run, f.RunStart, f.RunOrigin = -1, f.LastSeen, f.Offset
		}
	default:
		f.Run = 0
	}

	f.Offset = off
	f.LastSeen = d
	f.Hits++
	f.Score++
	f.addSample(d, off)
	f.Drift = t.regress(f)
	if math.Abs(off-f.Birth) > t.cfg.StationaryTolerance {
		f.Stationary = false
	}
}

// regress fits offset against distance over the feature's sample window and
// returns the slope. Degenerate windows have zero drift.
func (t *tracker) regress(f *Feature) float64 {
	n := f.nsample
	if n < 2 {
		return 0
	}
	for i := 0; i < n; i++ {
		t.xs[i], t.ys[i] = f.samples[i][0], f.samples[i][1]
	}
	if t.xs[0] == t.xs[n-1] {
		return 0
	}
	_, beta := stat.LinearRegression(t.xs[:n], t.ys[:n], nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}

func (t *tracker) create(off, d float64) {
	if t.n == MaxFeatures {
		t.evictWeakest(d)
	}
	f := &t.features[t.n]
	*f = Feature{
		Offset:     off,
		Birth:      off,
		FirstSeen:  d,
		LastSeen:   d,
		Hits:       1,
		Score:      1,
		RunStart:   d,
		RunOrigin:  off,
		Stationary: true,
	}
	f.addSample(d, off)
	t.n++
}

// evictWeakest drops the unmatched feature with the lowest continuity score,
// oldest first on ties.
func (t *tracker) evictWeakest(d float64) {
	victim := -1
	for j := 0; j < t.n; j++ {
		f := &t.features[j]
		if f.LastSeen == d {
			continue
		}
		if victim < 0 || f.Score < t.features[victim].Score ||
			(f.Score == t.features[victim].Score && f.FirstSeen < t.features[victim].FirstSeen) {
			victim = j
		}
	}
	if victim < 0 {
		victim = 0
	}
	monitoring.Debugf("linepattern: feature capacity reached, evicting offset=%.1f score=%.2f", t.features[victim].Offset, t.features[victim].Score)
	t.remove(victim)
	t.evictions++
}

func (t *tracker) remove(j int) {
	copy(t.features[j:t.n], t.features[j+1:t.n])
	t.n--
}

// closeDashes records lane marker dashes: a stationary feature beside an older
// line that stops being present after a bounded lifetime.
func (t *tracker) closeDashes(d float64) {
	for j := 0; j < t.n; j++ {
		f := &t.features[j]
		if f.closed || d-f.LastSeen <= t.cfg.NoiseGap {
			continue
		}
		f.closed = true
		life := f.lifetime()
		if f.Stationary && f.Side != Neutral && life >= t.cfg.DashMin && life <= t.cfg.DashMax {
			t.dashes++
			t.dashSeen = f.LastSeen
			t.dashSide = f.Side
		}
	}
}

func (t *tracker) evictStale(d float64) {
	for j := 0; j < t.n; {
		if d-t.features[j].LastSeen > t.cfg.Grace {
			t.remove(j)
			continue
		}
		j++
	}
}

// present reports whether f still counts towards the current group.
func (t *tracker) present(f *Feature, d float64) bool {
	return d-f.LastSeen <= t.cfg.NoiseGap
}

// assignSides fixes, once, which side of the oldest neighbouring line a newer
// feature appeared on.
func (t *tracker) assignSides(d float64) {
	if t.countPresent(d) < 2 {
		return
	}
	for j := 0; j < t.n; j++ {
		f := &t.features[j]
		if f.Side != Neutral || !t.present(f, d) {
			continue
		}
		ref := -1
		for k := 0; k < t.n; k++ {
			g := &t.features[k]
			if k == j || !t.present(g, d) {
				continue
			}
			if ref < 0 || g.FirstSeen < t.features[ref].FirstSeen {
				ref = k
			}
		}
		if ref >= 0 && t.features[ref].FirstSeen < f.FirstSeen {
			if f.Offset > t.features[ref].Offset {
				f.Side = Positive
			} else {
				f.Side = Negative
			}
		}
	}
}

func (t *tracker) countPresent(d float64) int {
	c := 0
	for j := 0; j < t.n; j++ {
		if t.present(&t.features[j], d) {
			c++
		}
	}
	return c
}

// laneActive reports whether a lane change marker is in progress and forgets
// completed dashes once it has ended.
func (t *tracker) laneActive(d float64) bool {
	if t.dashes == 0 {
		return false
	}
	for j := 0; j < t.n; j++ {
		f := &t.features[j]
		if t.present(f, d) && f.Stationary && f.Side != Neutral {
			return true
		}
	}
	if d-t.dashSeen <= t.cfg.LaneChangeExit {
		return true
	}
	t.dashes = 0
	return false
}
