package linepattern

import "math"

// classifier evaluates the domain rules against the tracker and window.
type classifier struct {
	cfg *Config

	// scratch
	present [MaxFeatures]*Feature
	np      int
	merged  [windowCapacity + 1]Segment
}

// collect gathers the present features into c.present.
func (c *classifier) collect(t *tracker, d float64) {
	c.np = 0
	for j := 0; j < t.n; j++ {
		if f := &t.features[j]; t.present(f, d) {
			c.present[c.np] = f
			c.np++
		}
	}
}

// groupKind classifies the present features collected for this scan.
func (c *classifier) groupKind() GroupKind {
	switch c.np {
	case 0:
		return GroupEmpty
	case 1:
		f := c.present[0]
		if math.Abs(f.Offset) <= c.cfg.SingleMaxOffset && math.Abs(f.Drift) <= c.cfg.SingleMaxDrift {
			return GroupSingle
		}
	case 3:
		a, b, m := sort3(c.present[0].Offset, c.present[1].Offset, c.present[2].Offset)
		left, right := b-a, m-b
		if math.Abs(b) <= c.cfg.CenterTolerance &&
			math.Abs(left-right) <= c.cfg.SymmetryTolerance &&
			c.inSpacing(left) && c.inSpacing(right) {
			return GroupTriple
		}
	}
	return GroupOther
}

func sort3(a, b, c float64) (float64, float64, float64) {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return a, b, c
}

func (c *classifier) inSpacing(s float64) bool {
	return s >= c.cfg.SpacingMin && s <= c.cfg.SpacingMax
}

// classify returns the candidate pattern for this scan, or ok=false when no
// rule fires and the current pattern should persist.
func (c *classifier) classify(domain Domain, cur Pattern, w *Window, t *tracker, laneActive bool, d float64) (Pattern, bool) {
	seg, _ := w.Current()

	if seg.Kind == GroupEmpty && (d-seg.Start >= c.cfg.NoneMinDistance || seg.Scans >= c.cfg.NoneMinScans) {
		return noPattern, true
	}

	switch domain {
	case DomainRace:
		if c.accelerating(w, d) {
			return Pattern{Type: PatternAccelerate}, true
		}
		if seg.Kind == GroupTriple && d-seg.Start >= c.cfg.BrakeMinDistance {
			return Pattern{Type: PatternBrake}, true
		}
	case DomainLabyrinth:
		if p, ok := c.junction(cur); ok {
			return p, true
		}
		if laneActive {
			return laneChange(t.dashSide), true
		}
	}

	if seg.Kind == GroupSingle && d-seg.Start >= c.cfg.SingleMinDistance {
		return singlePattern, true
	}
	return Pattern{}, false
}

func laneChange(side Sign) Pattern {
	if side == Negative {
		return Pattern{Type: PatternLaneChange, Sign: Negative, Dir: Left}
	}
	return Pattern{Type: PatternLaneChange, Sign: Positive, Dir: Right}
}

// accelerating looks for five alternating triple and single groups with two
// consistent periods, ignoring short dropout groups.
func (c *classifier) accelerating(w *Window, d float64) bool {
	n := 0
	for i := 0; i < w.Len(); i++ {
		s := w.At(i)
		if (s.Kind == GroupEmpty || s.Kind == GroupOther) && s.Span() <= c.cfg.NoiseSpan {
			continue
		}
		if n > 0 && c.merged[n-1].Kind == s.Kind {
			c.merged[n-1].Last = s.Last
			c.merged[n-1].Scans += s.Scans
			continue
		}
		c.merged[n] = s
		n++
	}
	if n < 5 {
		return false
	}

	last := c.merged[n-5 : n]
	for i, s := range last {
		if s.Kind != GroupTriple && s.Kind != GroupSingle {
			return false
		}
		if i > 0 && s.Kind == last[i-1].Kind {
			return false
		}
	}

	p1 := last[2].Start - last[0].Start
	p2 := last[4].Start - last[2].Start
	if math.Abs(p1-p2) > c.cfg.PeriodTolerance*math.Max(p1, p2) {
		return false
	}
	longest := 0.0
	for i := 0; i < 4; i++ {
		longest = math.Max(longest, last[i+1].Start-last[i].Start)
	}
	if longest > c.cfg.AccelMaxSegment {
		return false
	}
	return d-last[4].Start <= 1.5*longest
}

// junction recognises branches diverging from or converging to the line.
func (c *classifier) junction(cur Pattern) (Pattern, bool) {
	var diverging, converging int
	var divSides, convSides sideSet
	settled := false
	entering := false

	for i := 0; i < c.np; i++ {
		f := c.present[i]
		span := f.runSpan()
		switch {
		case f.Run > 0 && span >= c.cfg.JunctionMinSpan:
			diverging++
			divSides.add(f.movementSide())
		case f.Run < 0 && span >= c.cfg.JunctionMinSpan:
			converging++
			convSides.add(f.movementSide())
			if c.nearestOther(i) <= c.cfg.JunctionSettleGap {
				settled = true
			}
		}
		if f.Run > 0 && span >= c.cfg.JunctionEntrySpan {
			entering = true
		}
	}

	switch {
	case diverging > 0:
		return Pattern{Type: junctionType(1 + diverging), Sign: Positive, Dir: divSides.direction()}, true
	case converging > 0 && settled:
		return Pattern{Type: junctionType(1 + converging), Sign: Negative, Dir: convSides.direction()}, true
	case !cur.Type.IsJunction() && c.np >= 2 && entering:
		return Pattern{Type: PatternJunction1, Sign: Negative, Dir: Center}, true
	}
	return Pattern{}, false
}

// nearestOther returns the lateral gap between present feature i and the
// closest other present feature.
func (c *classifier) nearestOther(i int) float64 {
	best := math.Inf(1)
	for k := 0; k < c.np; k++ {
		if k != i {
			best = math.Min(best, math.Abs(c.present[i].Offset-c.present[k].Offset))
		}
	}
	return best
}

// sideSet accumulates the sides branches move to.
type sideSet struct{ left, right bool }

func (s *sideSet) add(side Sign) {
	if side < 0 {
		s.left = true
	} else {
		s.right = true
	}
}

func (s sideSet) direction() Direction {
	switch {
	case s.left && !s.right:
		return Left
	case s.right && !s.left:
		return Right
	default:
		return Center
	}
}
