// Package store is the relational sink: it loads the device catalog
// from ins_dwp_devices, persists finalized cycles to ins_dwp_counts, and
// appends status-change entries to log_dwp_uptime.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/ttmmdgt/caldera-cosmic/internal/config"
	"github.com/ttmmdgt/caldera-cosmic/internal/cycle"
	"github.com/ttmmdgt/caldera-cosmic/internal/liveness"
)

// Store wraps a pooled *sql.DB and implements cycle.Sink and
// liveness.Log against the three tables described in §6.
type Store struct {
	db *sql.DB
}

// Open connects to MySQL using dsn and caps the pool at 10 connections,
// matching the single-place-parallelism-is-latent design of the
// concurrency model.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sink pool: %w", err)
	}
	db.SetMaxOpenConns(10)
	return &Store{db: db}, nil
}

// Close closes the connection pool. Callers should join the poll and
// heartbeat loops (internal/scheduler.Scheduler.Run does this with a
// sync.WaitGroup) before calling this, since both can still be writing.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadDevices loads every active device row and parses its config JSON
// into a DeviceSpec. A parse failure skips the offending device; it
// does not abort the load.
func (s *Store) LoadDevices() ([]config.DeviceSpec, error) {
	rows, err := s.db.Query(`SELECT id, name, ip_address, config FROM ins_dwp_devices WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("querying ins_dwp_devices: %w", err)
	}
	defer rows.Close()

	var specs []config.DeviceSpec
	for rows.Next() {
		var id int
		var name, ip string
		var cfgJSON []byte
		if err := rows.Scan(&id, &name, &ip, &cfgJSON); err != nil {
			logrus.Errorf("scanning ins_dwp_devices row: %v", err)
			continue
		}
		spec, err := config.ParseDeviceConfig(id, name, ip, cfgJSON)
		if err != nil {
			logrus.Errorf("skipping device %d (%s): %v", id, name, err)
			continue
		}
		if len(spec.LineKeys) == 0 {
			continue
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// DeviceExists implements liveness.Log.
func (s *Store) DeviceExists(id int) bool {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM ins_dwp_devices WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		logrus.Errorf("checking device %d existence: %v", id, err)
		return false
	}
	return exists
}

// LogStatusChange implements liveness.Log, inserting into log_dwp_uptime.
func (s *Store) LogStatusChange(c liveness.Change) error {
	_, err := s.db.Exec(
		`INSERT INTO log_dwp_uptime (ins_dwp_device_id, status, logged_at, message, duration_seconds, created_at, updated_at)
		 VALUES (?, ?, NOW(), ?, ?, NOW(), NOW())`,
		c.DeviceID, string(c.NewStatus), c.Message, c.DurationInPreviousStateSecs,
	)
	if err != nil {
		return fmt.Errorf("inserting log_dwp_uptime row for device %d: %w", c.DeviceID, err)
	}
	return nil
}

type cyclePV struct {
	Waveforms  [2][]int `json:"waveforms"`
	Timestamps []int64  `json:"timestamps,omitempty"`
	Quality    struct {
		Grade cycle.Grade `json:"grade"`
		Peaks struct {
			TH   int `json:"th"`
			Side int `json:"side"`
		} `json:"peaks"`
		CycleType   cycle.Type `json:"cycle_type"`
		SampleCount int        `json:"sample_count"`
	} `json:"quality"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveCycle implements cycle.Sink, inserting one row into ins_dwp_counts.
func (s *Store) SaveCycle(rec cycle.Record) error {
	var maxCount sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(count) FROM ins_dwp_counts WHERE line = ?`, rec.Line).Scan(&maxCount)
	if err != nil {
		return fmt.Errorf("querying current count for line %s: %w", rec.Line, err)
	}
	count := int64(1)
	if maxCount.Valid {
		count = maxCount.Int64 + 1
	}

	pv := cyclePV{Waveforms: [2][]int{rec.THWaveform, rec.SideWaveform}}
	if len(rec.Timestamps) > 0 {
		pv.Timestamps = rec.Timestamps
	}
	pv.Quality.Grade = rec.Grade
	pv.Quality.Peaks.TH = rec.MaxTH
	pv.Quality.Peaks.Side = rec.MaxSide
	pv.Quality.CycleType = rec.Type
	pv.Quality.SampleCount = rec.SampleCount

	pvJSON, err := json.Marshal(pv)
	if err != nil {
		return fmt.Errorf("marshaling pv document: %w", err)
	}
	stdError, err := json.Marshal([2][1]int{{boolToInt(rec.THOk)}, {boolToInt(rec.SideOk)}})
	if err != nil {
		return fmt.Errorf("marshaling std_error document: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO ins_dwp_counts (line, mechine, count, incremental, position, pv, duration, std_error, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?, ?, NOW(), NOW())`,
		rec.Line, rec.MachineID, count, string(rec.Position), pvJSON, rec.DurationS, stdError,
	)
	if err != nil {
		return fmt.Errorf("inserting ins_dwp_counts row: %w", err)
	}
	return nil
}
