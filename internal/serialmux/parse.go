package serialmux

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/units"
)

const (
	EventTypeScan    = "scan"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// ErrInvalidPayload is returned when a scan line cannot be decoded.
var ErrInvalidPayload = errors.New("invalid scan payload")

// ClassifyPayload inspects a payload string and returns a simple event type
// token. Scans are JSON objects carrying a "lines" array; any other JSON
// object is a status or config response from the board.
func ClassifyPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "{") {
		return EventTypeUnknown
	}
	if strings.Contains(payload, `"lines"`) {
		return EventTypeScan
	}
	return EventTypeStatus
}

// wireScan is the board's JSON scan record.
type wireScan struct {
	Distance *float64           `json:"distance"`
	Unit     string             `json:"unit,omitempty"`
	Dir      int                `json:"dir"`
	Lines    []linepattern.Line `json:"lines"`
}

// ParseScan decodes one scan line, converting the distance to millimetres.
// Offsets are always reported in millimetres.
func ParseScan(payload string) (linepattern.Scan, error) {
	var w wireScan
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &w); err != nil {
		return linepattern.Scan{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if w.Distance == nil {
		return linepattern.Scan{}, fmt.Errorf("%w: missing distance", ErrInvalidPayload)
	}
	if w.Unit != "" && !units.IsValid(w.Unit) {
		return linepattern.Scan{}, fmt.Errorf("%w: unit %q, expected one of %s", ErrInvalidPayload, w.Unit, units.GetValidUnitsString())
	}
	if w.Dir < -1 || w.Dir > 1 {
		return linepattern.Scan{}, fmt.Errorf("%w: dir %d", ErrInvalidPayload, w.Dir)
	}
	return linepattern.Scan{
		Lines:     w.Lines,
		Distance:  units.ToMillimeters(*w.Distance, w.Unit),
		Direction: linepattern.Sign(w.Dir),
	}, nil
}

// EncodeScan renders a scan in the board's wire format, without a trailing
// newline.
func EncodeScan(s linepattern.Scan) string {
	d := s.Distance
	lines := s.Lines
	if lines == nil {
		lines = []linepattern.Line{}
	}
	b, err := json.Marshal(wireScan{Distance: &d, Unit: units.MM, Dir: int(s.Direction), Lines: lines})
	if err != nil {
		// Non-finite offsets cannot be encoded; the board never sends them.
		return fmt.Sprintf(`{"distance":%g,"unit":"mm","dir":%d,"lines":[]}`, d, s.Direction)
	}
	return string(b)
}
