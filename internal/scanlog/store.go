// Package scanlog records raw scans per session in SQLite so a run can be
// replayed through the calculator offline.
package scanlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/line-detector/internal/linepattern"
)

// ErrSessionNotFound is returned when a session ID is not in the store.
var ErrSessionNotFound = errors.New("scanlog: session not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Store is a scan log database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the scan log at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scan log: %w", err)
	}
	// A single connection keeps the pragmas in effect for every statement.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Session describes one recorded run.
type Session struct {
	ID          string             `json:"session_id"`
	Domain      linepattern.Domain `json:"-"`
	DomainName  string             `json:"domain"`
	Source      string             `json:"source"`
	Note        string             `json:"note,omitempty"`
	StartedAtNs int64              `json:"started_at_ns"`
	Scans       int                `json:"scans"`
}

// StartedAt returns the session start time.
func (s Session) StartedAt() time.Time { return time.Unix(0, s.StartedAtNs) }

// StartSession creates a new session and returns a recorder appending to it.
// source names the scan producer, for example a serial device path.
func (s *Store) StartSession(ctx context.Context, domain linepattern.Domain, source, note string) (*Recorder, error) {
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: %v", linepattern.ErrInvalidDomain, domain)
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, domain, source, note, started_at_ns) VALUES (?, ?, ?, ?, ?)`,
		id, domain.String(), source, note, s.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &Recorder{store: s, id: id}, nil
}

// Sessions lists recorded sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.domain, s.source, s.note, s.started_at_ns, COUNT(c.seq)
		FROM sessions s
		LEFT JOIN scans c ON c.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at_ns, s.session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.session_id, s.domain, s.source, s.note, s.started_at_ns,
		       (SELECT COUNT(*) FROM scans c WHERE c.session_id = s.session_id)
		FROM sessions s
		WHERE s.session_id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var sess Session
	if err := r.Scan(&sess.ID, &sess.DomainName, &sess.Source, &sess.Note, &sess.StartedAtNs, &sess.Scans); err != nil {
		return Session{}, err
	}
	d, err := linepattern.ParseDomain(sess.DomainName)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Domain = d
	return sess, nil
}

// Scans loads the scans of a session in recording order.
func (s *Store) Scans(ctx context.Context, sessionID string) ([]linepattern.Scan, error) {
	if _, err := s.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT distance_mm, direction, lines_json
		FROM scans
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []linepattern.Scan
	for rows.Next() {
		var scan linepattern.Scan
		var dir int
		var linesJSON string
		if err := rows.Scan(&scan.Distance, &dir, &linesJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(linesJSON), &scan.Lines); err != nil {
			return nil, fmt.Errorf("decode lines of scan %d: %w", len(out), err)
		}
		scan.Direction = linepattern.Sign(dir)
		out = append(out, scan)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its scans.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Recorder appends scans to one session. It is not safe for concurrent use.
type Recorder struct {
	store *Store
	id    string
	seq   int64
}

// SessionID returns the ID of the session being recorded.
func (r *Recorder) SessionID() string { return r.id }

// RecordScan appends scan to the session.
func (r *Recorder) RecordScan(ctx context.Context, scan linepattern.Scan) error {
	lines := scan.Lines
	if lines == nil {
		lines = []linepattern.Line{}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx,
		`INSERT INTO scans (session_id, seq, distance_mm, direction, lines_json, received_at_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		r.id, r.seq, scan.Distance, int(scan.Direction), string(linesJSON), r.store.now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	r.seq++
	return nil
}
