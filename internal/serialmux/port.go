package serialmux

import (
	"fmt"
	"io"
	"time"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// boardLine is the part of serial.Port used to bring the board up.
type boardLine interface {
	SetDTR(bool) error
	ResetInputBuffer() error
}

// resetPulse is how long DTR is held low to restart the board.
var resetPulse = 50 * time.Millisecond

// prepareBoard optionally restarts the board and then discards anything
// received before the first command, so Monitor starts on a line boundary.
func prepareBoard(p boardLine, opts PortOptions) error {
	if opts.ResetOnOpen {
		if err := p.SetDTR(false); err != nil {
			return fmt.Errorf("lower DTR: %w", err)
		}
		time.Sleep(resetPulse)
		if err := p.SetDTR(true); err != nil {
			return fmt.Errorf("raise DTR: %w", err)
		}
	}
	if err := p.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flush input: %w", err)
	}
	return nil
}
