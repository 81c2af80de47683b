package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

type recordRow struct {
	RunID          string  `db:"run_id"`
	NeighborhoodID string  `db:"neighborhood_id"`
	Step           int64   `db:"step"`
	SimTS          int64   `db:"sim_ts"`
	TotalGridKWh   float64 `db:"total_grid_kwh"`
	MeanSoC        float64 `db:"mean_soc"`
	Record         string  `db:"record"`
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
// In-memory databases are limited to one connection so every query sees the
// same data.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	schema := `CREATE TABLE IF NOT EXISTS step_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		neighborhood_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		sim_ts INTEGER NOT NULL,
		total_grid_kwh REAL NOT NULL,
		mean_soc REAL NOT NULL,
		record TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_step_records_run ON step_records(run_id, step);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	row := recordRow{
		RunID:          rec.RunID,
		NeighborhoodID: rec.NeighborhoodID,
		Step:           rec.Step,
		SimTS:          rec.SimTime.UnixNano(),
		TotalGridKWh:   rec.Aggregate.TotalGridExchangeKWh,
		MeanSoC:        rec.Aggregate.MeanSoC,
		Record:         string(b),
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO step_records
		(run_id, neighborhood_id, step, sim_ts, total_grid_kwh, mean_soc, record)
		VALUES (:run_id, :neighborhood_id, :step, :sim_ts, :total_grid_kwh, :mean_soc, :record)`, row)
	return err
}

// Query returns records matching q ordered by run and step.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT run_id, neighborhood_id, step, sim_ts, total_grid_kwh, mean_soc, record FROM step_records WHERE 1=1`
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.NeighborhoodID != "" {
		query += ` AND neighborhood_id = ?`
		args = append(args, q.NeighborhoodID)
	}
	if q.FromStep > 0 {
		query += ` AND step >= ?`
		args = append(args, q.FromStep)
	}
	if q.ToStep > 0 {
		query += ` AND step <= ?`
		args = append(args, q.ToStep)
	}
	if !q.Start.IsZero() {
		query += ` AND sim_ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND sim_ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	res := make([]Record, 0, len(rows))
	for _, row := range rows {
		var r Record
		if err := json.Unmarshal([]byte(row.Record), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
