package tunnel

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// AuditLog records device connect/disconnect events in a small relational
// table — a genuinely relational, secondary concern (append-only rows,
// queried by time range) distinct from the in-memory content graph and
// access store, so it is the one place in this codebase that reaches for
// SQL storage.
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog opens or creates a SQLite database at dsn (pure-Go driver,
// no CGO) and ensures its schema exists.
func OpenAuditLog(dsn string) (*AuditLog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tunnel: open audit db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tunnel: audit db pragmas: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS device_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		event TEXT NOT NULL,
		at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tunnel: audit db migrate: %w", err)
	}

	return &AuditLog{db: db}, nil
}

func (a *AuditLog) Close() error { return a.db.Close() }

func (a *AuditLog) record(ctx context.Context, device DeviceID, event string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO device_events (device_id, event) VALUES (?, ?)`, device.String(), event)
	return err
}

// Recent returns the last limit device events, most recent first, for a
// debugging/admin view.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]DeviceEvent, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT device_id, event, at FROM device_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeviceEvent
	for rows.Next() {
		var e DeviceEvent
		if err := rows.Scan(&e.DeviceID, &e.Event, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeviceEvent is one row of the audit log.
type DeviceEvent struct {
	DeviceID string    `json:"device_id"`
	Event    string    `json:"event"`
	At       time.Time `json:"at"`
}

func (s *Server) auditConnect(id DeviceID) {
	if s.Audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Audit.record(ctx, id, "connect"); err != nil {
		s.Logger.Warn("audit log write failed", "error", err)
	}
}

func (s *Server) auditDisconnect(id DeviceID) {
	if s.Audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Audit.record(ctx, id, "disconnect"); err != nil {
		s.Logger.Warn("audit log write failed", "error", err)
	}
}
