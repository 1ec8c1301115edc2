package linepattern

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// scanPitch is the distance travelled between recorded scans.
const scanPitch = 10.0

// repeat returns n identical rows of offsets.
func repeat(n int, offsets ...float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = append([]float64(nil), offsets...)
	}
	return rows
}

// each builds one row per x using fn.
func each(fn func(x float64) []float64, xs ...float64) [][]float64 {
	rows := make([][]float64, 0, len(xs))
	for _, x := range xs {
		rows = append(rows, fn(x))
	}
	return rows
}

func concat(parts ...[][]float64) [][]float64 {
	var out [][]float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// toScans turns offset rows into scans with per-scan random identifiers and
// line order, so only offsets can carry continuity.
func toScans(rows [][]float64, seed uint64) []Scan {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	scans := make([]Scan, len(rows))
	for i, row := range rows {
		ids := r.Perm(256)
		lines := make([]Line, len(row))
		for k, off := range row {
			lines[k] = Line{ID: uint8(ids[k]), Offset: off}
		}
		r.Shuffle(len(lines), func(a, b int) { lines[a], lines[b] = lines[b], lines[a] })
		scans[i] = Scan{Lines: lines, Distance: float64(i) * scanPitch, Direction: Positive}
	}
	return scans
}

// transitions feeds scans to a fresh calculator and returns every reported change.
func transitions(t *testing.T, domain Domain, scans []Scan) []Pattern {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	var got []Pattern
	for i, s := range scans {
		require.NoError(t, c.Update(domain, s), "scan %d", i)
		if c.Changed() {
			got = append(got, c.Pattern())
		}
	}
	return got
}

var (
	single     = Pattern{Type: PatternSingleLine, Sign: Neutral, Dir: Center}
	none       = Pattern{Type: PatternNone, Sign: Neutral, Dir: Center}
	brake      = Pattern{Type: PatternBrake, Sign: Neutral, Dir: Center}
	accelerate = Pattern{Type: PatternAccelerate, Sign: Neutral, Dir: Center}
	laneRight  = Pattern{Type: PatternLaneChange, Sign: Positive, Dir: Right}
)

func junction(k int, s Sign, d Direction) Pattern {
	return Pattern{Type: junctionType(k), Sign: s, Dir: d}
}

// leftBranchIn is a branch converging from the far left onto the main line.
var leftBranchIn = []float64{-83, -79, -76, -73, -70, -68, -66, -64, -62, -60, -58, -57,
	-56, -55, -54, -53, -52, -51, -50, -49, -48, -47, -46, -45, -44, -43, -42, -41, -40, -39}

// branchOut is the offset of a branch diverging from the main line.
var branchOut = []float64{39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51, 52, 53, 54, 55,
	56, 57, 58, 60, 62, 64, 66, 68, 70, 73, 76, 79, 83}

type scenario struct {
	name   string
	domain Domain
	rows   [][]float64
	want   []Pattern
}

func recordedScenarios() []scenario {
	triple := []float64{-38, 0, 38}
	return []scenario{
		{
			name:   "single line",
			domain: DomainRace,
			rows:   repeat(8, 0),
			want:   []Pattern{single},
		},
		{
			name:   "line lost",
			domain: DomainRace,
			rows:   concat(repeat(9, 0), repeat(13)),
			want:   []Pattern{single, none},
		},
		{
			name:   "brake",
			domain: DomainRace,
			rows:   repeat(21, triple...),
			want:   []Pattern{single, brake},
		},
		{
			name:   "accelerate",
			domain: DomainRace,
			rows: concat(
				repeat(8, triple...), repeat(8, 0),
				repeat(8, triple...), repeat(8, 0),
				repeat(8, triple...),
			),
			want: []Pattern{single, accelerate},
		},
		{
			name:   "accelerate with dropouts",
			domain: DomainRace,
			rows: concat(
				repeat(7, triple...), repeat(1, -38, 0),
				repeat(8, 0), repeat(1, -38),
				repeat(6, triple...), repeat(1, -38, 0),
				repeat(8, 0),
				repeat(7, triple...), repeat(1, -38, 0),
			),
			want: []Pattern{single, accelerate},
		},
		{
			name:   "junction 2 merging left then splitting right",
			domain: DomainLabyrinth,
			rows: concat(
				repeat(8, 0),
				each(func(x float64) []float64 { return []float64{x, 0} }, leftBranchIn...),
				repeat(16, triple...),
				each(func(x float64) []float64 { return []float64{0, x} }, branchOut...),
			),
			want: []Pattern{single, junction(2, Negative, Left), junction(2, Positive, Right)},
		},
		{
			name:   "junction 1 entry then splitting right",
			domain: DomainLabyrinth,
			rows: concat(
				repeat(27, -38),
				repeat(16, -38, 0),
				each(func(x float64) []float64 { return []float64{-38, x} },
					1, 2, 3, 4, 6, 8, 10, 13, 16, 19, 22, 25, 29, 33, 37, 42, 47, 52, 58, 66, 72, 78, 84, 90, 97),
				repeat(9, -38),
			),
			want: []Pattern{single, junction(1, Negative, Center), junction(2, Positive, Right), single},
		},
		{
			name:   "junction 3 merging left then splitting both ways",
			domain: DomainLabyrinth,
			rows: concat(
				repeat(8, 0),
				each(func(x float64) []float64 { return []float64{x, 0} }, leftBranchIn[:12]...),
				zip3(
					[]float64{-120, -116, -112, -108, -104, -102, -100, -98, -96, -94, -92, -90, -88, -86, -84, -82, -80, -78},
					leftBranchIn[12:],
					0,
				),
				[][]float64{{-68, -29, 10}, {-58, -19, 20}, {-48, -10, 30}},
				repeat(13, triple...),
				each(func(x float64) []float64 { return []float64{-x, 0, x} }, branchOut...),
			),
			want: []Pattern{single, junction(3, Negative, Left), junction(3, Positive, Center)},
		},
		{
			name:   "lane change right",
			domain: DomainLabyrinth,
			rows: concat(
				repeat(9, 0), repeat(16, 0, 38),
				repeat(14, 0), repeat(14, 0, 38),
				repeat(12, 0), repeat(12, 0, 38),
				repeat(10, 0), repeat(10, 0, 38),
				repeat(8, 0), repeat(8, 0, 38),
				repeat(16, 0),
			),
			want: []Pattern{single, laneRight, single},
		},
		{
			name:   "lane change right with uneven dashes",
			domain: DomainLabyrinth,
			rows: concat(
				repeat(11, 0), repeat(15, 0, 38),
				repeat(14, 0), repeat(13, 0, 38),
				repeat(12, 0), repeat(14, 0, 38),
				repeat(8, 0), repeat(10, 0, 38),
				repeat(8, 0), repeat(8, 0, 38),
				repeat(16, 0),
			),
			want: []Pattern{single, laneRight, single},
		},
	}
}

// zip3 pairs two converging branches with a main line at offset main.
func zip3(outer, inner []float64, main float64) [][]float64 {
	rows := make([][]float64, len(outer))
	for i := range outer {
		rows[i] = []float64{outer[i], inner[i], main}
	}
	return rows
}

func TestRecordedScenarios(t *testing.T) {
	t.Parallel()
	for _, sc := range recordedScenarios() {
		t.Run(sc.name, func(t *testing.T) {
			t.Parallel()
			for seed := uint64(1); seed <= 5; seed++ {
				got := transitions(t, sc.domain, toScans(sc.rows, seed))
				if diff := cmp.Diff(sc.want, got); diff != "" {
					t.Fatalf("seed %d: transitions mismatch (-want +got):\n%s", seed, diff)
				}
			}
		})
	}
}
