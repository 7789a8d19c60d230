// Package audit records inspector-session events (attach/detach, bridge
// connections, control messages) to SQLite. It is an optional trail of who
// inspected what, not a store of operation history.
package audit

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event represents one session-trail entry.
type Event struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Session    string    `json:"session"`
	EventType  string    `json:"event_type"` // "attach", "detach", "connect", "disconnect", "control", "error"
	Detail     string    `json:"detail,omitempty"`
	ClientAddr string    `json:"client_addr,omitempty"`
	Success    bool      `json:"success"`
}

// Trail handles session-event logging to SQLite. Live subscribers receive
// each event as it is recorded, ahead of the batched database write.
type Trail struct {
	db          *sql.DB
	hub         *Hub
	mu          sync.Mutex
	batchSize   int
	flushTicker *time.Ticker
	buffer      []Event
	bufferMu    sync.Mutex
}

// NewTrail opens (or creates) the trail database.
func NewTrail(dbPath string) (*Trail, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		session TEXT NOT NULL,
		event_type TEXT NOT NULL,
		detail TEXT,
		client_addr TEXT,
		success BOOLEAN NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_session_timestamp ON session_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_session_session ON session_events(session);
	CREATE INDEX IF NOT EXISTS idx_session_event_type ON session_events(event_type);
	`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	trail := &Trail{
		db:        db,
		hub:       NewHub(),
		batchSize: 100,
		buffer:    make([]Event, 0, 100),
	}

	trail.flushTicker = time.NewTicker(5 * time.Second)
	go trail.backgroundFlush()

	return trail, nil
}

// Record buffers one session event for batch insertion.
func (t *Trail) Record(session, eventType, detail, clientAddr string, success bool) {
	event := Event{
		Timestamp:  time.Now(),
		Session:    session,
		EventType:  eventType,
		Detail:     detail,
		ClientAddr: clientAddr,
		Success:    success,
	}

	t.bufferMu.Lock()
	t.buffer = append(t.buffer, event)
	full := len(t.buffer) >= t.batchSize
	t.bufferMu.Unlock()

	t.hub.Publish(event)

	if full {
		go t.Flush()
	}
}

// Subscribe registers a live listener for recorded events.
func (t *Trail) Subscribe() (uint64, <-chan Event) {
	return t.hub.Subscribe()
}

// Unsubscribe removes a live listener.
func (t *Trail) Unsubscribe(id uint64) {
	t.hub.Unsubscribe(id)
}

// Flush writes all buffered events to the database.
func (t *Trail) Flush() error {
	t.bufferMu.Lock()
	if len(t.buffer) == 0 {
		t.bufferMu.Unlock()
		return nil
	}
	events := make([]Event, len(t.buffer))
	copy(events, t.buffer)
	t.buffer = t.buffer[:0]
	t.bufferMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO session_events (timestamp, session, event_type, detail, client_addr, success)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.Exec(
			event.Timestamp,
			event.Session,
			event.EventType,
			event.Detail,
			event.ClientAddr,
			event.Success,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

func (t *Trail) backgroundFlush() {
	for range t.flushTicker.C {
		_ = t.Flush()
	}
}

// QueryOptions filters trail reads.
type QueryOptions struct {
	Session   string
	EventType string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Query retrieves session events, newest first.
func (t *Trail) Query(opts QueryOptions) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	query := `
		SELECT id, timestamp, session, event_type, detail, client_addr, success
		FROM session_events
		WHERE 1=1
	`
	args := make([]any, 0)

	if opts.Session != "" {
		query += " AND session = ?"
		args = append(args, opts.Session)
	}
	if opts.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, opts.EventType)
	}
	if !opts.StartTime.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, opts.StartTime)
	}
	if !opts.EndTime.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, opts.EndTime)
	}

	limit := 100
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT %d OFFSET %d", limit, opts.Offset)

	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.Session,
			&event.EventType,
			&event.Detail,
			&event.ClientAddr,
			&event.Success,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// Close flushes any remaining events and closes the database.
func (t *Trail) Close() error {
	if t.flushTicker != nil {
		t.flushTicker.Stop()
	}
	if err := t.Flush(); err != nil {
		return err
	}
	return t.db.Close()
}
