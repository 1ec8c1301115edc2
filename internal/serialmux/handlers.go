package serialmux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/monitoring"
)

var (
	stateMu      sync.Mutex
	currentState map[string]any
)

// CurrentState returns a copy of the latest status values received from the
// board.
func CurrentState() map[string]any {
	stateMu.Lock()
	defer stateMu.Unlock()
	return maps.Clone(currentState)
}

// HandleStatus merges a status response into CurrentState.
func HandleStatus(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("%w: status: %v", ErrInvalidPayload, err)
	}

	stateMu.Lock()
	if currentState == nil {
		currentState = make(map[string]any)
	}
	maps.Copy(currentState, values)
	stateMu.Unlock()

	monitoring.Logf("status line: %s", payload)
	return nil
}

// HandleEvent dispatches one line from the board. Decoded scans are passed
// to emit; emit errors are returned unwrapped so callers can match them.
func HandleEvent(payload string, emit func(linepattern.Scan) error) error {
	switch ClassifyPayload(payload) {
	case EventTypeScan:
		scan, err := ParseScan(payload)
		if err != nil {
			return err
		}
		return emit(scan)
	case EventTypeStatus:
		return HandleStatus(payload)
	default:
		monitoring.Logf("unknown event type: %s", payload)
	}
	return nil
}

// ForwardScans subscribes to mux and passes every decoded scan to send until
// the context is cancelled, the mux closes, or send fails. Lines that fail to
// decode are logged and skipped.
func ForwardScans(ctx context.Context, mux SerialMuxInterface, send func(context.Context, linepattern.Scan) error) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	emit := func(s linepattern.Scan) error { return send(ctx, s) }
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := HandleEvent(line, emit)
			if errors.Is(err, ErrInvalidPayload) {
				monitoring.Logf("dropping line: %v", err)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}
