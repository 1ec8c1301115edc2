// Command replay runs a recorded scan log session through the calculator and
// prints the pattern transitions it reports.
//
// Usage:
//
//	go run ./cmd/tools/replay -db scans.db -list
//	go run ./cmd/tools/replay -db scans.db -session <id> [-config tuning.json] [-plot out.png]
//
// The session's recorded domain is used unless -domain overrides it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/line-detector/internal/config"
	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/scanlog"
)

// transition is one pattern change found during replay.
type transition struct {
	Index    int                 `json:"scan"`
	Distance float64             `json:"distance_mm"` // raw scan distance at the change
	Pattern  linepattern.Pattern `json:"pattern"`
}

// replayResult is the outcome of one replay.
type replayResult struct {
	Domain      linepattern.Domain `json:"-"`
	Transitions []transition       `json:"transitions"`
	Stats       linepattern.Stats  `json:"stats"`
}

// replay feeds scans to calc in order. Malformed scans are counted and
// skipped the same way the live host does.
func replay(calc *linepattern.Calculator, domain linepattern.Domain, scans []linepattern.Scan) (replayResult, error) {
	res := replayResult{Domain: domain, Transitions: []transition{}}
	for i, s := range scans {
		if err := calc.Update(domain, s); err != nil {
			if errors.Is(err, linepattern.ErrMalformedScan) {
				continue
			}
			return res, fmt.Errorf("scan %d: %w", i, err)
		}
		if calc.Changed() {
			res.Transitions = append(res.Transitions, transition{Index: i, Distance: s.Distance, Pattern: calc.Pattern()})
		}
	}
	res.Stats = calc.Stats()
	return res, nil
}

func listSessions(ctx context.Context, w io.Writer, store *scanlog.Store) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tDOMAIN\tSOURCE\tSTARTED\tSCANS\tNOTE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.DomainName, s.Source, s.StartedAt().UTC().Format(time.RFC3339), s.Scans, s.Note)
	}
	return tw.Flush()
}

func printTransitions(w io.Writer, res replayResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCAN\tDISTANCE (mm)\tPATTERN")
	for _, t := range res.Transitions {
		fmt.Fprintf(tw, "%d\t%.1f\t%v\n", t.Index, t.Distance, t.Pattern)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d scans accepted, %d dropped, %d clamped, %d evictions, %d reversals\n",
		res.Stats.Scans, res.Stats.Dropped, res.Stats.Clamped, res.Stats.Evictions, res.Stats.Reversals)
	return err
}

func main() {
	dbPath := flag.String("db", "", "Path to the scan log database (required)")
	sessionID := flag.String("session", "", "Session ID to replay")
	domainName := flag.String("domain", "", "Override the session's recorded domain")
	configFile := flag.String("config", "", "Path to a tuning JSON file")
	plotPath := flag.String("plot", "", "Write a PNG of line offsets and transitions to this path")
	list := flag.Bool("list", false, "List recorded sessions and exit")
	asJSON := flag.Bool("json", false, "Print transitions as JSON")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Error: -db flag is required")
	}

	store, err := scanlog.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open scan log: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if *list {
		if err := listSessions(ctx, os.Stdout, store); err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		return
	}
	if *sessionID == "" {
		log.Fatal("Error: -session flag is required (use -list to find one)")
	}

	sess, err := store.Session(ctx, *sessionID)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}
	domain := sess.Domain
	if *domainName != "" {
		if domain, err = linepattern.ParseDomain(*domainName); err != nil {
			log.Fatalf("Invalid -domain: %v", err)
		}
	}

	cfg := linepattern.DefaultConfig()
	if *configFile != "" {
		tuning, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		cfg = linepattern.ConfigFromTuning(tuning)
	}
	calc, err := linepattern.New(cfg)
	if err != nil {
		log.Fatalf("Invalid tuning: %v", err)
	}

	scans, err := store.Scans(ctx, sess.ID)
	if err != nil {
		log.Fatalf("Failed to load scans: %v", err)
	}
	log.Printf("Replaying session %s: %d scans, %s domain", sess.ID, len(scans), domain)

	res, err := replay(calc, domain, scans)
	if err != nil {
		log.Fatalf("Replay stopped: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
	} else if err := printTransitions(os.Stdout, res); err != nil {
		log.Fatalf("Failed to print transitions: %v", err)
	}

	if *plotPath != "" {
		if err := plotReplay(*plotPath, sess.ID, scans, res); err != nil {
			log.Fatalf("Failed to write plot: %v", err)
		}
		log.Printf("Wrote %s", *plotPath)
	}
}
