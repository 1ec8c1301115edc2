// Serialmux provides an abstraction over the sensor board's serial port with
// the ability for multiple clients to subscribe to the lines it emits and send
// commands to the board.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

var (
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrInvalidCommand is returned for commands that would reach the board
	// as more than one line.
	ErrInvalidCommand = errors.New("invalid board command")
)

// InitCommands are sent by Initialize, in order.
var InitCommands = []string{
	"X",      // stop streaming and reset the scan counter
	"U=mm",   // report distances in millimetres
	"F=json", // one JSON object per scan
	"L=6",    // report at most six lines per scan
	"S=1",    // start streaming
}

// SerialMux reads newline-delimited records from the sensor board and fans
// them out to subscribers. Commands to the board are serialised.
type SerialMux[T SerialPorter] struct {
	port      T
	subs      *subscriberSet
	commandMu sync.Mutex
}

// SerialMuxInterface is the scan source the pipeline and the monitor use.
// SerialMux, DisabledSerialMux and the mock course player implement it.
type SerialMuxInterface interface {
	// Subscribe returns a buffered channel of board lines and the ID used to
	// unsubscribe it. Lines that find the buffer full are dropped and counted.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one command line to the board.
	SendCommand(string) error
	// Monitor reads the port until it is drained, fails or ctx is cancelled.
	Monitor(context.Context) error
	// Close closes every subscriber channel and then the port.
	Close() error
	// Initialize sends InitCommands.
	Initialize() error
	// Stats reports line and drop counters.
	Stats() MuxStats

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux wraps an open port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{port: port, subs: newSubscriberSet()}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) { return s.subs.add() }

func (s *SerialMux[T]) Unsubscribe(id string) { s.subs.remove(id) }

func (s *SerialMux[T]) Stats() MuxStats { return s.subs.stats() }

// Initialize puts the sensor board into the output mode the scan parser
// expects: JSON scans with distances in millimetres, streamed continuously.
func (s *SerialMux[T]) Initialize() error {
	for _, command := range InitCommands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes command followed by a single newline. A trailing line
// ending on command is accepted; one inside it is not.
func (s *SerialMux[T]) SendCommand(command string) error {
	command = strings.TrimRight(command, "\r\n")
	if command == "" || strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}
	line := command + "\n"

	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := s.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and publishes them to subscribers. It
// returns nil when the port reports EOF or the mux is closed, ctx.Err() on
// cancellation and the read error otherwise.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// The scanner blocks in Read, so it runs apart from the loop that watches
	// ctx.
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.port)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if !s.subs.publish(line) {
				return nil
			}
		}
	}
}

// Close closes all subscriber channels and then the port. Later calls only
// close the port again.
func (s *SerialMux[T]) Close() error {
	s.subs.closeAll()
	return s.port.Close()
}
