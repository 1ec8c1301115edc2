package serialmux

import (
	"fmt"
	"slices"

	"go.bug.st/serial"
)

// DefaultBaudRate is the rate the sensor board firmware uses out of reset.
const DefaultBaudRate = 115200

// SupportedBaudRates are the rates the board firmware can be switched to.
// The link is always 8N1.
var SupportedBaudRates = []int{9600, 57600, 115200, 230400, 460800}

// PortOptions describes how the sensor board's serial port is opened.
type PortOptions struct {
	BaudRate int `json:"baud_rate"`
	// ResetOnOpen pulses DTR after opening, which restarts boards wired
	// with the usual auto-reset circuit.
	ResetOnOpen bool `json:"reset_on_open"`
}

// Normalize applies the default baud rate and rejects rates the firmware
// does not support.
func (o PortOptions) Normalize() (PortOptions, error) {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if !slices.Contains(SupportedBaudRates, o.BaudRate) {
		return o, fmt.Errorf("unsupported baud rate %d: board accepts %v", o.BaudRate, SupportedBaudRates)
	}
	return o, nil
}

// SerialMode converts the port options into the serial.Mode structure required by
// go.bug.st/serial when opening a port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}, nil
}
