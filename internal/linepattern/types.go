package linepattern

import (
	"fmt"
	"strings"
)

// Capacity limits. Scans carrying more lines than MaxLines are clamped.
const (
	MaxLines    = 6
	MaxFeatures = 8
)

// Line is a single detection within one scan. ID is only unique within the
// scan that produced it.
type Line struct {
	ID     uint8   `json:"id"`
	Offset float64 `json:"offset_mm"` // lateral offset from sensor centre, negative is left
}

// Scan is one sampling instant of the sensor bar.
type Scan struct {
	Lines     []Line
	Distance  float64 // cumulative longitudinal distance, mm
	Direction Sign    // direction of travel
}

// Sign is the polarity of a transition, and doubles as the direction of
// travel of a scan.
type Sign int8

const (
	Negative Sign = -1
	Neutral  Sign = 0
	Positive Sign = 1
)

func (s Sign) String() string {
	switch s {
	case Negative:
		return "NEGATIVE"
	case Neutral:
		return "NEUTRAL"
	case Positive:
		return "POSITIVE"
	default:
		return fmt.Sprintf("Sign(%d)", int8(s))
	}
}

// MarshalText renders the sign by name.
func (s Sign) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a sign name as produced by MarshalText.
func (s *Sign) UnmarshalText(b []byte) error {
	for _, v := range []Sign{Negative, Neutral, Positive} {
		if string(b) == v.String() {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("linepattern: unknown sign %q", b)
}

// Direction is the resolved lateral side of a pattern.
type Direction int8

const (
	Left   Direction = -1
	Center Direction = 0
	Right  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "LEFT"
	case Center:
		return "CENTER"
	case Right:
		return "RIGHT"
	default:
		return fmt.Sprintf("Direction(%d)", int8(d))
	}
}

// MarshalText renders the direction by name.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText parses a direction name as produced by MarshalText.
func (d *Direction) UnmarshalText(b []byte) error {
	for _, v := range []Direction{Left, Center, Right} {
		if string(b) == v.String() {
			*d = v
			return nil
		}
	}
	return fmt.Errorf("linepattern: unknown direction %q", b)
}

// PatternType enumerates the recognisable track patterns.
type PatternType uint8

const (
	PatternNone PatternType = iota
	PatternSingleLine
	PatternJunction1
	PatternJunction2
	PatternJunction3
	PatternLaneChange
	PatternBrake
	PatternAccelerate
)

var patternTypeNames = [...]string{
	PatternNone:       "NONE",
	PatternSingleLine: "SINGLE_LINE",
	PatternJunction1:  "JUNCTION_1",
	PatternJunction2:  "JUNCTION_2",
	PatternJunction3:  "JUNCTION_3",
	PatternLaneChange: "LANE_CHANGE",
	PatternBrake:      "BRAKE",
	PatternAccelerate: "ACCELERATE",
}

func (t PatternType) String() string {
	if int(t) < len(patternTypeNames) {
		return patternTypeNames[t]
	}
	return fmt.Sprintf("PatternType(%d)", uint8(t))
}

// MarshalText renders the pattern type by name.
func (t PatternType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText parses a pattern type name as produced by MarshalText.
func (t *PatternType) UnmarshalText(b []byte) error {
	for i, name := range patternTypeNames {
		if string(b) == name {
			*t = PatternType(i)
			return nil
		}
	}
	return fmt.Errorf("linepattern: unknown pattern type %q", b)
}

// IsJunction reports whether t is one of the JUNCTION_k types.
func (t PatternType) IsJunction() bool {
	return t == PatternJunction1 || t == PatternJunction2 || t == PatternJunction3
}

// junctionType returns JUNCTION_k for k clamped to [1,3].
func junctionType(k int) PatternType {
	switch {
	case k <= 1:
		return PatternJunction1
	case k == 2:
		return PatternJunction2
	default:
		return PatternJunction3
	}
}

// Pattern is the recognised output after an update.
type Pattern struct {
	Type PatternType `json:"type"`
	Sign Sign        `json:"sign"`
	Dir  Direction   `json:"dir"`
}

func (p Pattern) String() string {
	return p.Type.String() + " " + p.Sign.String() + " " + p.Dir.String()
}

var (
	noPattern     = Pattern{Type: PatternNone}
	singlePattern = Pattern{Type: PatternSingleLine}
)

// Domain selects which patterns are eligible for recognition.
type Domain uint8

const (
	DomainUnset Domain = iota
	DomainRace
	DomainLabyrinth
)

func (d Domain) String() string {
	switch d {
	case DomainRace:
		return "race"
	case DomainLabyrinth:
		return "labyrinth"
	default:
		return "unset"
	}
}

// Valid reports whether d names a real domain.
func (d Domain) Valid() bool { return d == DomainRace || d == DomainLabyrinth }

// Allows reports whether patterns of type t can be recognised in d.
func (d Domain) Allows(t PatternType) bool {
	switch t {
	case PatternNone, PatternSingleLine:
		return d.Valid()
	case PatternBrake, PatternAccelerate:
		return d == DomainRace
	case PatternJunction1, PatternJunction2, PatternJunction3, PatternLaneChange:
		return d == DomainLabyrinth
	}
	return false
}

// ParseDomain parses a domain name, case-insensitively.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "race":
		return DomainRace, nil
	case "labyrinth":
		return DomainLabyrinth, nil
	}
	return DomainUnset, fmt.Errorf("%w: %q (want race or labyrinth)", ErrInvalidDomain, s)
}
