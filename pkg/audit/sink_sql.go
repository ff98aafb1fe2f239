package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLSink stores entries in a relational table. The table has a unique
// sequence column, so a second writer racing on the same sequence fails.
type SQLSink struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name   string
	create string
	insert string
	load   string
}

var sqliteDialect = dialect{
	name: "sqlite",
	create: `
	CREATE TABLE IF NOT EXISTS audit_entries (
		sequence INTEGER PRIMARY KEY,
		event_type TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		decision TEXT NOT NULL,
		axiom_ref TEXT NOT NULL DEFAULT '',
		recorded_at TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		entry_hash TEXT NOT NULL UNIQUE
	);`,
	insert: `INSERT INTO audit_entries (
		sequence, event_type, input_hash, decision, axiom_ref, recorded_at, previous_hash, entry_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	load: `SELECT sequence, event_type, input_hash, decision, axiom_ref, recorded_at, previous_hash, entry_hash
		FROM audit_entries ORDER BY sequence ASC`,
}

var postgresDialect = dialect{
	name: "postgres",
	create: `
	CREATE TABLE IF NOT EXISTS audit_entries (
		sequence BIGINT PRIMARY KEY,
		event_type TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		decision TEXT NOT NULL,
		axiom_ref TEXT NOT NULL DEFAULT '',
		recorded_at TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		entry_hash TEXT NOT NULL UNIQUE
	)`,
	insert: `INSERT INTO audit_entries (
		sequence, event_type, input_hash, decision, axiom_ref, recorded_at, previous_hash, entry_hash
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	load: `SELECT sequence, event_type, input_hash, decision, axiom_ref, recorded_at, previous_hash, entry_hash
		FROM audit_entries ORDER BY sequence ASC`,
}

// NewSQLiteSink opens a SQLite-backed sink at path (modernc driver).
func NewSQLiteSink(ctx context.Context, path string) (*SQLSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQLSink(ctx, db, sqliteDialect)
}

// NewPostgresSink wraps an open Postgres handle (lib/pq). The sink owns
// db from here on and closes it if the migration fails.
func NewPostgresSink(ctx context.Context, db *sql.DB) (*SQLSink, error) {
	return newSQLSink(ctx, db, postgresDialect)
}

func newSQLSink(ctx context.Context, db *sql.DB, d dialect) (*SQLSink, error) {
	s := &SQLSink{db: db, dialect: d}
	if _, err := db.ExecContext(ctx, d.create); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s audit table: %w", d.name, err)
	}
	return s, nil
}

func (s *SQLSink) Write(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, s.dialect.insert,
		int64(e.Sequence), string(e.EventType), e.InputHash, e.Decision, e.AxiomRef,
		e.RecordedAt.UTC().Format(time.RFC3339Nano), e.PreviousHash, e.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *SQLSink) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.load)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			seq        int64
			eventType  string
			recordedAt string
		)
		if err := rows.Scan(&seq, &eventType, &e.InputHash, &e.Decision, &e.AxiomRef, &recordedAt, &e.PreviousHash, &e.EntryHash); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Sequence = uint64(seq)
		e.EventType = EventType(eventType)
		e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("audit entry %d: bad recorded_at: %w", seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}
