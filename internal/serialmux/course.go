package serialmux

import (
	"github.com/banshee-data/line-detector/internal/linepattern"
)

// CoursePitch is the distance travelled between synthetic scans, in mm.
const CoursePitch = 10.0

// SyntheticCourse returns one lap of a built-in course for the domain, used
// by linecalc -dev. The race lap holds a brake marker, an accelerate marker
// and a stretch without line. The labyrinth lap holds a lane change to the
// right, a branch splitting off to the right and a stretch without line.
func SyntheticCourse(domain linepattern.Domain) []linepattern.Scan {
	var rows [][]float64
	add := func(n int, offsets ...float64) {
		for i := 0; i < n; i++ {
			rows = append(rows, offsets)
		}
	}

	switch domain {
	case linepattern.DomainRace:
		add(8, 0)
		add(21, -38, 0, 38)
		add(10, 0)
		for i := 0; i < 5; i++ {
			if i%2 == 0 {
				add(8, -38, 0, 38)
			} else {
				add(8, 0)
			}
		}
		add(10, 0)
		add(13)
	case linepattern.DomainLabyrinth:
		add(10, 0)
		for _, n := range []int{16, 14, 12, 10, 8} {
			if n != 16 {
				add(n, 0)
			}
			add(n, 0, 38)
		}
		add(16, 0)
		for _, x := range []float64{1, 2, 3, 4, 6, 8, 10, 13, 16, 19, 22, 25, 29, 33, 37, 42, 47, 52, 58, 66, 72, 78, 84, 90, 97} {
			rows = append(rows, []float64{0, x})
		}
		add(12, 0)
		add(13)
	default:
		return nil
	}

	scans := make([]linepattern.Scan, len(rows))
	for i, row := range rows {
		lines := make([]linepattern.Line, len(row))
		for k, off := range row {
			lines[k] = linepattern.Line{ID: uint8(k), Offset: off}
		}
		scans[i] = linepattern.Scan{Lines: lines, Distance: float64(i) * CoursePitch, Direction: linepattern.Positive}
	}
	return scans
}
