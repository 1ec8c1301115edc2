package linepattern

// GroupKind classifies the set of present features in one scan.
type GroupKind uint8

const (
	GroupEmpty  GroupKind = iota // no line
	GroupSingle                  // one centred, straight line
	GroupTriple                  // three symmetric lines around a centre line
	GroupOther                   // anything else
)

func (k GroupKind) String() string {
	switch k {
	case GroupEmpty:
		return "empty"
	case GroupSingle:
		return "single"
	case GroupTriple:
		return "triple"
	default:
		return "other"
	}
}

// windowCapacity is the number of closed segments retained. An accelerate
// marker needs five alternating groups, and noisy scans can split each one
// in up to three pieces.
const windowCapacity = 16

// Segment is a run of consecutive scans with the same group kind.
type Segment struct {
	Kind  GroupKind
	Start float64 // travelled distance of the first scan
	Last  float64 // travelled distance of the latest scan
	Scans int
}

// Span is the distance covered by the segment.
func (s Segment) Span() float64 { return s.Last - s.Start }

// Window is a run-length history of group kinds: a fixed ring of closed
// segments plus the open one.
type Window struct {
	segments [windowCapacity]Segment
	head     int // next write position
	size     int
	current  Segment
	started  bool
}

// Observe appends one scan of kind k at travelled distance d.
func (w *Window) Observe(k GroupKind, d float64) {
	if w.started && w.current.Kind == k {
		w.current.Last = d
		w.current.Scans++
		return
	}
	if w.started {
		w.segments[w.head] = w.current
		w.head = (w.head + 1) % windowCapacity
		if w.size < windowCapacity {
			w.size++
		}
	}
	w.current = Segment{Kind: k, Start: d, Last: d, Scans: 1}
	w.started = true
}

// Current returns the open segment. ok is false before the first scan.
func (w *Window) Current() (seg Segment, ok bool) {
	return w.current, w.started
}

// Len returns the number of segments including the open one.
func (w *Window) Len() int {
	if !w.started {
		return 0
	}
	return w.size + 1
}

// At returns segment i in chronological order; the open segment is last.
func (w *Window) At(i int) Segment {
	if i == w.size {
		return w.current
	}
	idx := (w.head - w.size + i + windowCapacity) % windowCapacity
	return w.segments[idx]
}

// Reset forgets all segments.
func (w *Window) Reset() {
	*w = Window{}
}
