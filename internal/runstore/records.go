package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/racingline/internal/monitoring"
)

var (
	// ErrRecordNotFound is returned when no run record matches.
	ErrRecordNotFound = errors.New("run record not found")

	// ErrRecordExists is returned when inserting a record whose ID is taken.
	ErrRecordExists = errors.New("run record already exists")
)

// Record is one evaluated run. Records are write-once: a re-evaluation is
// stored as a new record.
type Record struct {
	RunID            string  `json:"run_id"`
	Model            string  `json:"model"`
	Checkpoint       int     `json:"checkpoint"`
	Map              string  `json:"map"`
	Weather          int     `json:"weather"`
	CreatedAt        int64   `json:"created_at"`
	Score            float64 `json:"score"`
	DTWRadius        *int    `json:"dtw_radius,omitempty"`
	PointCount       int     `json:"point_count"`
	Status           string  `json:"status"`
	Frames           int     `json:"frames"`
	AvgSpeedKmh      float64 `json:"avg_speed_kmh"`
	InterventionRate float64 `json:"intervention_rate"`
	RunDir           string  `json:"run_dir"`
}

// Completed reports whether the run closed its lap.
func (r *Record) Completed() bool {
	return r.Status == "complete"
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Map   string
	Model string
	// CompletedOnly drops incomplete and cancelled runs.
	CompletedOnly bool
	// Limit caps the number of records; zero means no limit.
	Limit int
}

// RecordStore provides persistence for run records.
type RecordStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewRecordStore creates a RecordStore on an already-migrated database.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db, now: time.Now}
}

const recordColumns = `run_id, model, checkpoint, map_name, weather, created_unix_nanos,
	score, dtw_radius, point_count, status, frames, avg_speed_kmh,
	intervention_rate, run_dir`

// Insert persists rec. If RunID is empty a UUID is generated; if CreatedAt
// is zero the current time is used. Both are written back into rec.
func (s *RecordStore) Insert(rec *Record) error {
	if rec.Model == "" || rec.Map == "" {
		return fmt.Errorf("run record requires model and map, got %q and %q", rec.Model, rec.Map)
	}
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.now().UnixNano()
	}
	if rec.Status == "" {
		rec.Status = "complete"
	}

	var radius sql.NullInt64
	if rec.DTWRadius != nil {
		radius = sql.NullInt64{Int64: int64(*rec.DTWRadius), Valid: true}
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO run_records (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Model, rec.Checkpoint, rec.Map, rec.Weather, rec.CreatedAt,
			rec.Score, radius, rec.PointCount, rec.Status, rec.Frames, rec.AvgSpeedKmh,
			rec.InterventionRate, rec.RunDir,
		)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrRecordExists, rec.RunID)
		}
		return fmt.Errorf("insert run record: %w", err)
	}
	monitoring.Logf("[RunStore] recorded run %s: model=%s map=%s score=%.4f status=%s",
		rec.RunID, rec.Model, rec.Map, rec.Score, rec.Status)
	return nil
}

// Get returns a single record by ID.
func (s *RecordStore) Get(runID string) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM run_records WHERE run_id = ?`, runID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns records matching f, newest first.
func (s *RecordStore) List(f Filter) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM run_records WHERE 1=1`
	var args []interface{}
	if f.Map != "" {
		query += ` AND map_name = ?`
		args = append(args, f.Map)
	}
	if f.Model != "" {
		query += ` AND model = ?`
		args = append(args, f.Model)
	}
	if f.CompletedOnly {
		query += ` AND status = 'complete'`
	}
	query += ` ORDER BY created_unix_nanos DESC, run_id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Best returns the completed run with the lowest score on mapName.
func (s *RecordStore) Best(mapName string) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM run_records
		WHERE map_name = ? AND status = 'complete'
		ORDER BY score ASC, created_unix_nanos ASC
		LIMIT 1`, mapName)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no completed runs on map %s", ErrRecordNotFound, mapName)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var radius sql.NullInt64
	err := row.Scan(
		&r.RunID, &r.Model, &r.Checkpoint, &r.Map, &r.Weather, &r.CreatedAt,
		&r.Score, &radius, &r.PointCount, &r.Status, &r.Frames, &r.AvgSpeedKmh,
		&r.InterventionRate, &r.RunDir,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run record: %w", err)
	}
	if radius.Valid {
		v := int(radius.Int64)
		r.DTWRadius = &v
	}
	return &r, nil
}

// retryOnBusy retries fn while SQLite reports the database as locked.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	backoff := 20 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
