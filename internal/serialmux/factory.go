package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// NewRealSerialMux opens the sensor board at path and prepares it for
// Initialize.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := prepareBoard(port, opts); err != nil {
		port.Close()
		return nil, fmt.Errorf("prepare %s: %w", path, err)
	}
	return NewSerialMux(port), nil
}

// AvailablePorts lists the serial ports present on this machine.
func AvailablePorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
