package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/monitoring"
)

// Change is one reported pattern transition.
type Change struct {
	Seq      uint64              `json:"seq"`
	Pattern  linepattern.Pattern `json:"pattern"`
	Distance float64             `json:"distance_mm"` // travelled distance at the transition
	Time     time.Time           `json:"time"`
}

// Snapshot is the host's view after the latest accepted scan. It is safe to
// read from other goroutines.
type Snapshot struct {
	Pattern  linepattern.Pattern   `json:"pattern"`
	Distance float64               `json:"distance_mm"`
	Stats    linepattern.Stats     `json:"stats"`
	Features []linepattern.Feature `json:"features"`
	Time     time.Time             `json:"time"`
}

// ScanRecorder persists raw scans for offline replay.
type ScanRecorder interface {
	RecordScan(ctx context.Context, scan linepattern.Scan) error
}

// Host owns a Calculator and drives it from a scan handoff. Only Run may
// touch the calculator.
type Host struct {
	calc     *linepattern.Calculator
	domain   linepattern.Domain
	scans    *Handoff[linepattern.Scan]
	changes  *Handoff[Change]
	recorder ScanRecorder

	seq      uint64
	snapshot atomic.Pointer[Snapshot]
	now      func() time.Time
}

// HostOption configures optional Host behaviour.
type HostOption func(*Host)

// WithRecorder records every received scan, including ones the calculator
// later drops.
func WithRecorder(r ScanRecorder) HostOption {
	return func(h *Host) { h.recorder = r }
}

// WithClock overrides the time source used to stamp changes.
func WithClock(now func() time.Time) HostOption {
	return func(h *Host) { h.now = now }
}

// NewHost returns a Host for the given domain. changes may be nil when no
// consumer is attached.
func NewHost(calc *linepattern.Calculator, domain linepattern.Domain, scans *Handoff[linepattern.Scan], changes *Handoff[Change], opts ...HostOption) (*Host, error) {
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: %v", linepattern.ErrInvalidDomain, domain)
	}
	h := &Host{
		calc:    calc,
		domain:  domain,
		scans:   scans,
		changes: changes,
		now:     time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	h.snapshot.Store(&Snapshot{Pattern: calc.Pattern()})
	return h, nil
}

// Snapshot returns the state after the latest accepted scan.
func (h *Host) Snapshot() Snapshot { return *h.snapshot.Load() }

// Run processes scans until the context is cancelled, the scan handoff is
// closed, or the calculator reports a configuration error. Malformed scans
// are logged and skipped.
func (h *Host) Run(ctx context.Context) error {
	var feats []linepattern.Feature
	for {
		scan, err := h.scans.Receive(ctx)
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if h.recorder != nil {
			if err := h.recorder.RecordScan(ctx, scan); err != nil {
				monitoring.Logf("pipeline: failed to record scan: %v", err)
			}
		}

		if err := h.calc.Update(h.domain, scan); err != nil {
			if errors.Is(err, linepattern.ErrMalformedScan) {
				monitoring.Logf("pipeline: %v", err)
				continue
			}
			return fmt.Errorf("calculator update: %w", err)
		}

		feats = h.calc.Features(feats[:0])
		h.snapshot.Store(&Snapshot{
			Pattern:  h.calc.Pattern(),
			Distance: h.calc.Distance(),
			Stats:    h.calc.Stats(),
			Features: append([]linepattern.Feature(nil), feats...),
			Time:     h.now(),
		})

		if !h.calc.Changed() || h.changes == nil {
			continue
		}
		h.seq++
		change := Change{Seq: h.seq, Pattern: h.calc.Pattern(), Distance: h.calc.Distance(), Time: h.now()}
		if err := h.changes.Send(ctx, change); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
	}
}
