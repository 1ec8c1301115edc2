package linepattern

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/line-detector/internal/monitoring"
)

var (
	// ErrInvalidDomain is returned when Update is called without a valid domain.
	ErrInvalidDomain = errors.New("linepattern: invalid domain")
	// ErrDomainChanged is returned when Update is called with a domain other
	// than the one the session was bound to.
	ErrDomainChanged = errors.New("linepattern: domain changed within session")
	// ErrMalformedScan is returned for a scan that was dropped because its
	// distance is inconsistent with its direction of travel. The calculator
	// state is unchanged; callers may log and continue.
	ErrMalformedScan = errors.New("linepattern: malformed scan")
)

// Stats counts what the calculator has seen since New or Reset.
type Stats struct {
	Scans       uint64 `json:"scans"`       // accepted scans
	Dropped     uint64 `json:"dropped"`     // malformed scans rejected
	Clamped     uint64 `json:"clamped"`     // scans with readings discarded
	Evictions   uint64 `json:"evictions"`   // features evicted at capacity
	Transitions uint64 `json:"transitions"` // reported pattern changes
	Reversals   uint64 `json:"reversals"`   // direction of travel flips
}

// Calculator recognises line patterns from successive scans. A Calculator
// is not safe for concurrent use and must not be copied after New.
type Calculator struct {
	cfg    Config
	domain Domain

	tracker tracker
	window  Window
	cls     classifier

	pattern    Pattern
	changed    bool
	seeded     bool
	candidate  Pattern
	candidateN int

	started   bool
	lastRaw   float64
	heading   Sign // last non-neutral direction
	travelled float64

	lines [MaxLines]Line
	keep  [MaxLines]int
	stats Stats
}

// New returns a Calculator using cfg. The domain is bound by the first
// successful call to Update.
func New(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Calculator{cfg: cfg}
	c.tracker.cfg = &c.cfg
	c.cls.cfg = &c.cfg
	return c, nil
}

// Update feeds one scan. Configuration errors (ErrInvalidDomain,
// ErrDomainChanged) should stop the host; ErrMalformedScan only reports a
// dropped scan.
func (c *Calculator) Update(domain Domain, scan Scan) error {
	if !domain.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidDomain, domain)
	}
	if c.domain == DomainUnset {
		c.domain = domain
	} else if domain != c.domain {
		return fmt.Errorf("%w: bound to %v, got %v", ErrDomainChanged, c.domain, domain)
	}

	c.changed = false
	d, err := c.advance(scan)
	if err != nil {
		c.stats.Dropped++
		monitoring.Debugf("linepattern: dropping scan: %v", err)
		return err
	}
	lines := c.clamp(scan.Lines)
	c.stats.Scans++

	c.tracker.update(lines, d)
	c.cls.collect(&c.tracker, d)
	c.window.Observe(c.cls.groupKind(), d)
	laneActive := c.tracker.laneActive(d)
	c.stats.Evictions = uint64(c.tracker.evictions)

	// A session starts on the line: the first scan that sees one reports it.
	if !c.seeded {
		if len(lines) > 0 {
			c.seeded = true
			c.setPattern(singlePattern)
		}
		return nil
	}

	cand, ok := c.cls.classify(c.domain, c.pattern, &c.window, &c.tracker, laneActive, d)
	c.gate(cand, ok)
	return nil
}

// Pattern returns the currently recognised pattern.
func (c *Calculator) Pattern() Pattern { return c.pattern }

// Changed reports whether the last Update changed the pattern.
func (c *Calculator) Changed() bool { return c.changed }

// Domain returns the bound domain, or DomainUnset before the first Update.
func (c *Calculator) Domain() Domain { return c.domain }

// Stats returns a copy of the counters.
func (c *Calculator) Stats() Stats { return c.stats }

// Distance returns the travelled distance of the last accepted scan.
func (c *Calculator) Distance() float64 { return c.travelled }

// Features appends the currently present features to dst.
func (c *Calculator) Features(dst []Feature) []Feature {
	for j := 0; j < c.tracker.n; j++ {
		if f := &c.tracker.features[j]; c.tracker.present(f, c.travelled) {
			dst = append(dst, *f)
		}
	}
	return dst
}

// Reset starts a new session: all state is cleared and the domain unbound.
func (c *Calculator) Reset() {
	cfg := c.cfg
	*c = Calculator{cfg: cfg}
	c.tracker.cfg = &c.cfg
	c.cls.cfg = &c.cfg
}

// advance validates the scan distance against the direction of travel and
// returns the travelled distance. A reversal restarts tracking on the new
// heading but keeps the reported pattern.
func (c *Calculator) advance(scan Scan) (float64, error) {
	if math.IsNaN(scan.Distance) || math.IsInf(scan.Distance, 0) {
		return 0, fmt.Errorf("%w: non-finite distance %v", ErrMalformedScan, scan.Distance)
	}
	if scan.Direction < Negative || scan.Direction > Positive {
		return 0, fmt.Errorf("%w: direction %d", ErrMalformedScan, scan.Direction)
	}
	if !c.started {
		c.started = true
		c.lastRaw, c.heading = scan.Distance, scan.Direction
		return c.travelled, nil
	}

	// Neutral scans in between do not hide a change of heading.
	delta := scan.Distance - c.lastRaw
	if scan.Direction != Neutral && c.heading != Neutral && scan.Direction != c.heading {
		c.stats.Reversals++
		c.resetTracking()
	} else if !c.consistent(scan.Direction, delta) {
		return 0, fmt.Errorf("%w: distance %.1f -> %.1f moving %v", ErrMalformedScan, c.lastRaw, scan.Distance, scan.Direction)
	}

	c.lastRaw = scan.Distance
	if scan.Direction != Neutral {
		c.heading = scan.Direction
	}
	c.travelled += math.Abs(delta)
	return c.travelled, nil
}

func (c *Calculator) consistent(dir Sign, delta float64) bool {
	switch dir {
	case Positive:
		return delta >= 0
	case Negative:
		return delta <= 0
	default:
		return math.Abs(delta) <= c.cfg.NeutralTolerance
	}
}

func (c *Calculator) resetTracking() {
	c.tracker.reset()
	c.window.Reset()
	c.candidateN = 0
}

// clamp copies the usable lines of a scan into the calculator's buffer. Non
// finite offsets are discarded and, beyond MaxLines, only the lines nearest
// the centre are kept, in their original order.
func (c *Calculator) clamp(in []Line) []Line {
	nk := 0
	dropped := false
	for i := range in {
		off := in[i].Offset
		if math.IsNaN(off) || math.IsInf(off, 0) {
			dropped = true
			continue
		}
		if nk < MaxLines {
			c.keep[nk] = i
			nk++
			continue
		}
		dropped = true
		// Replace the kept line furthest from centre if this one is nearer.
		worst := 0
		for k := 1; k < nk; k++ {
			if math.Abs(in[c.keep[k]].Offset) > math.Abs(in[c.keep[worst]].Offset) {
				worst = k
			}
		}
		if math.Abs(off) < math.Abs(in[c.keep[worst]].Offset) {
			copy(c.keep[worst:nk], c.keep[worst+1:nk])
			c.keep[nk-1] = i
		}
	}
	if dropped {
		c.stats.Clamped++
		monitoring.Debugf("linepattern: clamped scan with %d lines to %d", len(in), nk)
	}
	for k := 0; k < nk; k++ {
		c.lines[k] = in[c.keep[k]]
	}
	return c.lines[:nk]
}

// gate applies the stability requirement to a candidate pattern.
func (c *Calculator) gate(cand Pattern, ok bool) {
	if !ok || cand == c.pattern {
		c.candidateN = 0
		return
	}
	if c.candidateN > 0 && cand == c.candidate {
		c.candidateN++
	} else {
		c.candidate, c.candidateN = cand, 1
	}
	if c.candidateN >= c.cfg.StableScans {
		c.setPattern(cand)
		c.candidateN = 0
	}
}

func (c *Calculator) setPattern(p Pattern) {
	if p == c.pattern {
		return
	}
	c.pattern = p
	c.changed = true
	c.stats.Transitions++
}
