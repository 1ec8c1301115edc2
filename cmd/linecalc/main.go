// Command linecalc reads scans from the sensor board, recognises track
// patterns and serves the live state on a small monitor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/line-detector/internal/config"
	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/monitor"
	"github.com/banshee-data/line-detector/internal/monitoring"
	"github.com/banshee-data/line-detector/internal/pipeline"
	"github.com/banshee-data/line-detector/internal/scanlog"
	"github.com/banshee-data/line-detector/internal/serialmux"
	"github.com/banshee-data/line-detector/internal/version"
)

var (
	domainName    = flag.String("domain", "", "Track domain: race or labyrinth")
	devMode       = flag.Bool("dev", false, "Replay a synthetic course instead of reading the sensor board")
	devInterval   = flag.Duration("dev-interval", 20*time.Millisecond, "Interval between synthetic scans in dev mode")
	port          = flag.String("port", "/dev/ttyUSB0", "Serial port of the sensor board (ignored in dev mode)")
	baudRate      = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	resetBoard    = flag.Bool("reset", false, "Pulse DTR to restart the sensor board after opening the port")
	listPorts     = flag.Bool("list-ports", false, "List serial ports and exit")
	disableSerial = flag.Bool("disable-serial", false, "Run without a sensor board (monitor only)")
	listen        = flag.String("listen", ":8080", "Monitor listen address, empty to disable")
	configFile    = flag.String("config", "", "Path to a tuning JSON file; built-in defaults when empty")
	recordPath    = flag.String("record", "", "Record raw scans to this SQLite scan log")
	recordNote    = flag.String("note", "", "Note stored with the recorded session")
	debugLog      = flag.Bool("debug", false, "Log per-scan diagnostics")
	showVersion   = flag.Bool("version", false, "Print the version and exit")
)

// newCalculator builds a calculator from the tuning file at path, or from the
// built-in defaults when path is empty.
func newCalculator(path string) (*linepattern.Calculator, error) {
	cfg := linepattern.DefaultConfig()
	if path != "" {
		tuning, err := config.LoadTuningConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = linepattern.ConfigFromTuning(tuning)
	}
	return linepattern.New(cfg)
}

// openSensor returns the scan source selected by the flags and a label for
// the recorded session.
func openSensor(domain linepattern.Domain) (serialmux.SerialMuxInterface, string, error) {
	switch {
	case *disableSerial:
		return serialmux.NewDisabledSerialMux(), "disabled", nil
	case *devMode:
		return serialmux.NewMockSerialMux(serialmux.SyntheticCourse(domain), *devInterval), "synthetic:" + domain.String(), nil
	default:
		if *port == "" {
			return nil, "", errors.New("serial port is required")
		}
		m, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baudRate, ResetOnOpen: *resetBoard})
		if err != nil {
			return nil, "", err
		}
		return m, *port, nil
	}
}

// startPipeline runs the serial monitor, the scan decoder, the calculator
// host and the change consumer on wg. Each stage ends when its input closes
// or ctx is cancelled; a fatal host error cancels the rest through stop.
func startPipeline(ctx context.Context, stop context.CancelFunc, wg *sync.WaitGroup, sensor serialmux.SerialMuxInterface,
	host *pipeline.Host, scans *pipeline.Handoff[linepattern.Scan], changes *pipeline.Handoff[pipeline.Change], hub *monitor.Hub) {

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sensor.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// decode sensor lines and hand scans to the calculator
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer scans.Close()
		if err := serialmux.ForwardScans(ctx, sensor, scans.Send); err != nil &&
			!errors.Is(err, context.Canceled) && !errors.Is(err, pipeline.ErrClosed) {
			log.Printf("scan decoder stopped: %v", err)
		}
		log.Print("scan decoder terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer changes.Close()
		if err := host.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("calculator stopped: %v", err)
			stop()
		}
		log.Print("calculator routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			c, err := changes.Receive(ctx)
			if err != nil {
				log.Print("change consumer terminated")
				return
			}
			log.Printf("pattern #%d at %.0f mm: %v", c.Seq, c.Distance, c.Pattern)
			hub.Publish(c)
		}
	}()
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		ports, err := serialmux.AvailablePorts()
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	monitoring.SetDebug(*debugLog)

	domain, err := linepattern.ParseDomain(*domainName)
	if err != nil {
		log.Fatalf("invalid -domain: %v", err)
	}

	calc, err := newCalculator(*configFile)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	sensor, source, err := openSensor(domain)
	if err != nil {
		log.Fatalf("failed to open sensor board: %v", err)
	}
	defer sensor.Close()

	if err := sensor.Initialize(); err != nil {
		log.Fatalf("failed to initialize sensor board: %v", err)
	} else {
		log.Printf("initialized sensor board on %s", source)
	}

	var opts []pipeline.HostOption
	var store *scanlog.Store
	if *recordPath != "" {
		store, err = scanlog.Open(*recordPath)
		if err != nil {
			log.Fatalf("failed to open scan log: %v", err)
		}
		defer store.Close()

		rec, err := store.StartSession(context.Background(), domain, source, *recordNote)
		if err != nil {
			log.Fatalf("failed to start recording session: %v", err)
		}
		log.Printf("recording session %s to %s", rec.SessionID(), *recordPath)
		opts = append(opts, pipeline.WithRecorder(rec))
	}

	scans := pipeline.NewHandoff[linepattern.Scan]()
	changes := pipeline.NewHandoff[pipeline.Change]()
	host, err := pipeline.NewHost(calc, domain, scans, changes, opts...)
	if err != nil {
		log.Fatalf("failed to create calculator host: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("linecalc %s: %s domain", version.String(), domain)
	hub := monitor.NewHub()
	startPipeline(ctx, stop, &wg, sensor, host, scans, changes, hub)

	if *listen != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address: *listen,
			Domain:  domain,
			Source:  host,
			Hub:     hub,

			Transport: sensor,
		})
		sensor.AttachAdminRoutes(ws.Mux())
		if store != nil {
			if err := store.AttachAdminRoutes(ws.Mux()); err != nil {
				log.Printf("scan log admin routes unavailable: %v", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				log.Printf("%v", err)
				stop()
			}
		}()
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
