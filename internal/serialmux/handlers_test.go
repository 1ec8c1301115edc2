package serialmux

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/monitoring"
)

const scanFixture = `{"distance": 12.5, "unit": "cm", "dir": 1, "lines": [{"id": 3, "offset_mm": -38.5}, {"id": 7, "offset_mm": 0.25}]}`

func TestClassifyPayload(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{scanFixture, EventTypeScan},
		{`  {"distance":0,"lines":[]}` + "\r", EventTypeScan},
		{`{"firmware":"1.4.2","unit":"mm"}`, EventTypeStatus},
		{`plain text line`, EventTypeUnknown},
		{``, EventTypeUnknown},
	}

	for _, c := range cases {
		got := ClassifyPayload(c.in)
		if got != c.want {
			t.Fatalf("ClassifyPayload(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestParseScan(t *testing.T) {
	got, err := ParseScan(scanFixture)
	if err != nil {
		t.Fatalf("ParseScan returned error: %v", err)
	}
	want := linepattern.Scan{
		Lines:     []linepattern.Line{{ID: 3, Offset: -38.5}, {ID: 7, Offset: 0.25}},
		Distance:  125,
		Direction: linepattern.Positive,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseScan mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScan_Units(t *testing.T) {
	cases := []struct {
		payload string
		want    float64
	}{
		{`{"distance": 40, "lines": []}`, 40},
		{`{"distance": 40, "unit": "mm", "lines": []}`, 40},
		{`{"distance": 4, "unit": "cm", "lines": []}`, 40},
		{`{"distance": 0.04, "unit": "m", "lines": []}`, 40},
	}
	for _, c := range cases {
		got, err := ParseScan(c.payload)
		if err != nil {
			t.Fatalf("ParseScan(%s) error: %v", c.payload, err)
		}
		if math.Abs(got.Distance-c.want) > 1e-9 {
			t.Errorf("ParseScan(%s) distance = %f, want %f", c.payload, got.Distance, c.want)
		}
		if got.Direction != linepattern.Neutral {
			t.Errorf("missing dir should be neutral, got %v", got.Direction)
		}
	}
}

func TestParseScan_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{"distance": `},
		{"missing distance", `{"lines": []}`},
		{"unknown unit", `{"distance": 1, "unit": "in", "lines": []}`},
		{"direction out of range", `{"distance": 1, "dir": 2, "lines": []}`},
		{"id out of range", `{"distance": 1, "lines": [{"id": 300, "offset_mm": 0}]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := ParseScan(c.payload); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestEncodeScan(t *testing.T) {
	scan := linepattern.Scan{
		Lines:     []linepattern.Line{{ID: 1, Offset: -38}},
		Distance:  250,
		Direction: linepattern.Negative,
	}
	line := EncodeScan(scan)
	if ClassifyPayload(line) != EventTypeScan {
		t.Fatalf("encoded scan not classified as scan: %s", line)
	}
	got, err := ParseScan(line)
	if err != nil {
		t.Fatalf("ParseScan(%s) error: %v", line, err)
	}
	if diff := cmp.Diff(scan, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	empty := EncodeScan(linepattern.Scan{Distance: 10})
	if empty != `{"distance":10,"unit":"mm","dir":0,"lines":[]}` {
		t.Errorf("unexpected encoding of an empty scan: %s", empty)
	}
}

func TestHandleEvent(t *testing.T) {
	var got []linepattern.Scan
	emit := func(s linepattern.Scan) error {
		got = append(got, s)
		return nil
	}

	if err := HandleEvent(scanFixture, emit); err != nil {
		t.Fatalf("HandleEvent scan failed: %v", err)
	}
	if len(got) != 1 || got[0].Distance != 125 {
		t.Fatalf("expected one scan at 125mm, got %+v", got)
	}

	if err := HandleEvent(`{"firmware":"1.4.2","scan_hz":200}`, emit); err != nil {
		t.Fatalf("HandleEvent status failed: %v", err)
	}
	state := CurrentState()
	if state["firmware"] != "1.4.2" {
		t.Errorf("expected firmware in CurrentState, got %v", state)
	}
	state["firmware"] = "changed"
	if CurrentState()["firmware"] != "1.4.2" {
		t.Error("CurrentState should return a copy")
	}

	if err := HandleEvent("boot ok", emit); err != nil {
		t.Errorf("unknown lines should be ignored, got %v", err)
	}
	if err := HandleEvent(`{"distance": "far", "lines": []}`, emit); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
	if err := HandleEvent(`{not json`, emit); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for a broken status line, got %v", err)
	}
	if len(got) != 1 {
		t.Errorf("only the valid scan should be emitted, got %d", len(got))
	}

	sinkErr := errors.New("sink closed")
	if err := HandleEvent(scanFixture, func(linepattern.Scan) error { return sinkErr }); !errors.Is(err, sinkErr) {
		t.Errorf("expected emit error to be returned, got %v", err)
	}
}

func TestForwardScans(t *testing.T) {
	port := NewBlockingTestSerialPort()
	mux := NewSerialMux(port)
	defer mux.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	scans := make(chan linepattern.Scan, 4)
	done := make(chan error, 1)
	go func() {
		done <- ForwardScans(ctx, mux, func(_ context.Context, s linepattern.Scan) error {
			scans <- s
			return nil
		})
	}()

	// Wait for the subscription before feeding lines.
	waitForSubscribers(t, mux.subs, 1)
	go mux.Monitor(ctx)

	port.AddReadData("{\"distance\":0,\"dir\":1,\"lines\":[{\"id\":0,\"offset_mm\":0}]}\n" +
		"{\"distance\":\"bad\",\"lines\":[]}\n" +
		"{\"distance\":10,\"dir\":1,\"lines\":[]}\n")

	var got []float64
	for len(got) < 2 {
		select {
		case s := <-scans:
			got = append(got, s.Distance)
		case <-ctx.Done():
			t.Fatalf("timed out, got %v", got)
		}
	}
	if diff := cmp.Diff([]float64{0, 10}, got); diff != "" {
		t.Errorf("forwarded distances mismatch (-want +got):\n%s", diff)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestForwardScans_MuxClosed(t *testing.T) {
	d := NewDisabledSerialMux()
	done := make(chan error, 1)
	go func() {
		done <- ForwardScans(context.Background(), d, func(context.Context, linepattern.Scan) error { return nil })
	}()

	waitForSubscribers(t, d.subs, 1)
	d.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil when the mux closes, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ForwardScans did not return after Close")
	}
}

func TestHandleEvent_LogsThroughMonitoring(t *testing.T) {
	var logged []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, fmt.Sprintf(format, v...)) })
	t.Cleanup(func() { monitoring.Logf = prev })

	noop := func(linepattern.Scan) error { return nil }
	if err := HandleEvent("boot ok", noop); err != nil {
		t.Fatal(err)
	}
	if err := HandleEvent(`{"firmware":"1.4.2"}`, noop); err != nil {
		t.Fatal(err)
	}
	want := []string{"unknown event type: boot ok", `status line: {"firmware":"1.4.2"}`}
	if diff := cmp.Diff(want, logged); diff != "" {
		t.Errorf("log lines mismatch (-want +got):\n%s", diff)
	}
}
