// Package history keeps an optional sqlite log of served predictions so
// the demo page can show recent results. Writes never block or fail a
// request: errors are logged and dropped.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one logged prediction.
type Entry struct {
	ID         int64   `json:"id"`
	Timestamp  int64   `json:"timestamp"`
	Digit      int     `json:"digit"`
	Confidence float32 `json:"confidence"`
	LatencyMS  int64   `json:"latency_ms"`
}

// Log records predictions in a sqlite database.
type Log struct {
	db *sql.DB
}

// Open creates or opens the prediction log at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			digit INTEGER NOT NULL,
			confidence REAL NOT NULL,
			latency_ms INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the database handle.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Record logs one prediction. Nil receivers (history disabled) and write
// errors are both no-ops so the serving path never depends on the log.
func (l *Log) Record(ctx context.Context, digit int, confidence float32, latency time.Duration) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO predictions (ts, digit, confidence, latency_ms) VALUES (?,?,?,?)`,
		time.Now().Unix(), digit, confidence, latency.Milliseconds())
	if err != nil {
		slog.Warn("history write failed", "error", err, "digit", digit)
	}
}

// Recent returns up to limit entries, newest first. A nil receiver
// returns an empty slice.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if l == nil {
		return []Entry{}, nil
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, ts, digit, confidence, latency_ms FROM predictions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Digit, &e.Confidence, &e.LatencyMS); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
