package serialmux

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/monitoring"
)

// MockSerialPort implements SerialPorter by streaming a synthetic course.
// Commands written to it are logged.
type MockSerialPort struct {
	r         *io.PipeReader
	w         *io.PipeWriter
	done      chan struct{}
	closeOnce sync.Once
}

func (m *MockSerialPort) Read(p []byte) (n int, err error) { return m.r.Read(p) }

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	monitoring.Logf("mock serial port received command: %q", bytes.TrimSpace(p))
	return len(p), nil
}

// Close stops the course generator and unblocks readers.
func (m *MockSerialPort) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.w.Close()
	})
	return m.r.Close()
}

// NewMockSerialMux creates a SerialMux instance backed by a mock serial port
// that replays course in a loop, one scan per interval. Each lap continues
// the travelled distance of the previous one.
func NewMockSerialMux(course []linepattern.Scan, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	mockPort := &MockSerialPort{r: r, w: w, done: make(chan struct{})}

	lap := 0.0
	if n := len(course); n > 0 {
		lap = course[n-1].Distance + (course[n-1].Distance-course[0].Distance)/float64(max(n-1, 1))
	}

	go func() {
		defer w.Close()
		if len(course) == 0 {
			<-mockPort.done
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-mockPort.done:
				return
			case <-ticker.C:
			}
			scan := course[i%len(course)]
			scan.Distance += float64(i/len(course)) * lap
			if _, err := io.WriteString(w, EncodeScan(scan)+"\n"); err != nil {
				return
			}
		}
	}()

	return NewSerialMux(mockPort)
}
