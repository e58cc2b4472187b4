package datafile

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"randomizer/internal/experiment"
	"randomizer/internal/logging"
	"randomizer/internal/session"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Session statuses stored in the sessions table.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusAborted  = "aborted"
)

// timestampLayout has fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrSessionNotFound is returned when a session ID is not in the store.
var ErrSessionNotFound = errors.New("session not found")

// Store is the SQLite database holding every session run on this machine.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// OpenStore creates or opens the session database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		experiment TEXT NOT NULL,
		participant TEXT NOT NULL,
		kind TEXT NOT NULL,
		session_date TEXT NOT NULL,
		file_name TEXT NOT NULL,
		scorers INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_participant ON sessions(participant);

	CREATE TABLE IF NOT EXISTS trials (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		trial INTEGER NOT NULL,
		round INTEGER NOT NULL,
		object INTEGER NOT NULL,
		identifier TEXT NOT NULL,
		object_info TEXT NOT NULL,
		orientation TEXT NOT NULL,
		start_s REAL NOT NULL,
		end_s REAL NOT NULL,
		duration_s REAL NOT NULL,
		violation TEXT NOT NULL,
		PRIMARY KEY (session_id, trial)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SessionRow is one row of the sessions table.
type SessionRow struct {
	ID          string
	Experiment  string
	Participant string
	Kind        string
	Date        string
	FileName    string
	Scorers     int
	Status      string
	StartedAt   time.Time
	EndedAt     time.Time // zero while running
}

// TrialRow is one stored trial.
type TrialRow struct {
	Trial       int
	Round       int
	Object      int
	Identifier  string
	ObjectInfo  string
	Orientation string
	Start       float64
	End         float64
	Duration    float64
	Violation   string
}

// BeginSession records a running session and returns a sink bound to it.
func (s *Store) BeginSession(info session.Info, experimentName string) (*SQLiteSink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, experiment, participant, kind, session_date, file_name, scorers, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID, experimentName, info.ParticipantID, string(info.Kind),
		fmt.Sprintf("%d-%s-%02d", info.Year, info.Month, info.Day),
		info.FileName(experimentName), len(info.Scorers), StatusRunning, timestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	logging.Get(logging.CategoryDatafile).Info("session started",
		zap.String("session", info.ID),
		zap.String("participant", info.ParticipantID))
	return &SQLiteSink{store: s, sessionID: info.ID}, nil
}

// Sessions lists sessions, newest first.
func (s *Store) Sessions() ([]SessionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, experiment, participant, kind, session_date, file_name, scorers, status, started_at, ended_at
		FROM sessions ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Session returns one session by ID.
func (s *Store) Session(id string) (SessionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanSession(s.db.QueryRow(`
		SELECT id, experiment, participant, kind, session_date, file_name, scorers, status, started_at, ended_at
		FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return SessionRow{}, err
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRow, error) {
	var (
		r       SessionRow
		started string
		ended   sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Experiment, &r.Participant, &r.Kind, &r.Date,
		&r.FileName, &r.Scorers, &r.Status, &started, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRow{}, err
		}
		return SessionRow{}, fmt.Errorf("failed to scan session: %w", err)
	}
	r.StartedAt, _ = time.Parse(timestampLayout, started)
	if ended.Valid {
		r.EndedAt, _ = time.Parse(timestampLayout, ended.String)
	}
	return r, nil
}

func timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

// Trials returns the trials of a session in trial order.
func (s *Store) Trials(sessionID string) ([]TrialRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT trial, round, object, identifier, object_info, orientation, start_s, end_s, duration_s, violation
		FROM trials WHERE session_id = ? ORDER BY trial`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var out []TrialRow
	for rows.Next() {
		var r TrialRow
		if err := rows.Scan(&r.Trial, &r.Round, &r.Object, &r.Identifier, &r.ObjectInfo,
			&r.Orientation, &r.Start, &r.End, &r.Duration, &r.Violation); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) insertTrial(sessionID string, r experiment.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO trials (session_id, trial, round, object, identifier, object_info, orientation, start_s, end_s, duration_s, violation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, r.Trial, r.Round, r.Object, r.Stimulus.Identifier, r.Stimulus.Info(),
		string(r.Stimulus.Orientation), r.Start.Seconds(), r.End.Seconds(), r.Duration().Seconds(),
		r.Annotation.Marker())
	if err != nil {
		return fmt.Errorf("failed to store trial %d: %w", r.Trial, err)
	}
	return nil
}

func (s *Store) endSession(sessionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
		status, timestamp(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to mark session %s: %w", status, err)
	}
	logging.Get(logging.CategoryDatafile).Info("session ended",
		zap.String("session", sessionID),
		zap.String("status", status))
	return nil
}

// SQLiteSink writes the trials of one session to a Store. Aborted sessions
// keep the trials written so far.
type SQLiteSink struct {
	store     *Store
	sessionID string
	mu        sync.Mutex
	closed    bool
}

// SessionID returns the session the sink writes to.
func (k *SQLiteSink) SessionID() string {
	return k.sessionID
}

// Write stores one trial.
func (k *SQLiteSink) Write(r experiment.TrialRecord) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	return k.store.insertTrial(k.sessionID, r)
}

// Finalize marks the session complete.
func (k *SQLiteSink) Finalize() error {
	return k.end(StatusComplete)
}

// Abort marks the session aborted.
func (k *SQLiteSink) Abort() error {
	return k.end(StatusAborted)
}

func (k *SQLiteSink) end(status string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	k.closed = true
	return k.store.endSession(k.sessionID, status)
}
