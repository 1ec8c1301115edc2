package serialmux

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/line-detector/internal/linepattern"
)

func TestSyntheticCourse(t *testing.T) {
	single := linepattern.Pattern{Type: linepattern.PatternSingleLine}
	none := linepattern.Pattern{Type: linepattern.PatternNone}

	cases := []struct {
		domain linepattern.Domain
		lap    []linepattern.Pattern
	}{
		{linepattern.DomainRace, []linepattern.Pattern{
			single,
			{Type: linepattern.PatternBrake},
			single,
			{Type: linepattern.PatternAccelerate},
			none,
		}},
		{linepattern.DomainLabyrinth, []linepattern.Pattern{
			single,
			{Type: linepattern.PatternLaneChange, Sign: linepattern.Positive, Dir: linepattern.Right},
			single,
			{Type: linepattern.PatternJunction1, Sign: linepattern.Negative, Dir: linepattern.Center},
			{Type: linepattern.PatternJunction2, Sign: linepattern.Positive, Dir: linepattern.Right},
			single,
			none,
		}},
	}

	for _, c := range cases {
		t.Run(c.domain.String(), func(t *testing.T) {
			course := SyntheticCourse(c.domain)
			if len(course) == 0 {
				t.Fatal("empty course")
			}
			calc, err := linepattern.New(linepattern.DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}

			// Three laps, continuing the distance the way the mock port does.
			lap := float64(len(course)) * CoursePitch
			var got, want []linepattern.Pattern
			for l := 0; l < 3; l++ {
				want = append(want, c.lap...)
				for _, s := range course {
					s.Distance += float64(l) * lap
					if err := calc.Update(c.domain, s); err != nil {
						t.Fatalf("lap %d: %v", l, err)
					}
					if calc.Changed() {
						got = append(got, calc.Pattern())
					}
				}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("transitions mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if SyntheticCourse(linepattern.DomainUnset) != nil {
		t.Error("expected no course for an unset domain")
	}
}

func TestMockSerialMux(t *testing.T) {
	course := SyntheticCourse(linepattern.DomainRace)
	mux := NewMockSerialMux(course, time.Millisecond)
	_, lines := mux.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	if err := mux.Initialize(); err != nil {
		t.Fatalf("Initialize on the mock port failed: %v", err)
	}

	// Lines may be dropped under load, but distances never go backwards and
	// the second lap continues past the first.
	last := -1.0
	lap := float64(len(course)) * CoursePitch
	for last < lap {
		select {
		case line := <-lines:
			s, err := ParseScan(line)
			if err != nil {
				t.Fatalf("mock produced an invalid line %q: %v", line, err)
			}
			if s.Distance < last {
				t.Fatalf("distance went backwards: %f after %f", s.Distance, last)
			}
			last = s.Distance
		case <-ctx.Done():
			t.Fatalf("timed out at distance %f", last)
		}
	}

	if err := mux.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Monitor did not stop after Close")
	}
}
