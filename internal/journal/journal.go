// Package journal keeps an append-only SQLite log of the facts payloads
// applied to each work, so a record can be rebuilt when its JSON file and
// every backup are lost.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Entry is one applied payload.
type Entry struct {
	ID        string          `json:"id"`
	Work      string          `json:"work"`
	Chapter   int             `json:"chapter"`
	Payload   json.RawMessage `json:"payload"`
	Warnings  []string        `json:"warnings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AppendParams holds parameters for recording a payload.
type AppendParams struct {
	Work     string
	Chapter  int
	Payload  json.RawMessage
	Warnings []string
}

// ListParams holds parameters for listing entries. Zero values do not
// filter.
type ListParams struct {
	Work    string
	Chapter int
	Query   string
	Limit   int
}

// Journal is the SQLite-backed log.
type Journal struct {
	db      *sql.DB
	entropy io.Reader
}

// Open opens or creates the journal database at dbPath.
func Open(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	j := &Journal{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

func (j *Journal) newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), j.entropy).String()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS facts (
		id          TEXT PRIMARY KEY,
		work        TEXT NOT NULL,
		chapter     INTEGER NOT NULL,
		payload     TEXT NOT NULL,
		warnings    TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_work_chapter ON facts(work, chapter);
	CREATE INDEX IF NOT EXISTS idx_facts_created ON facts(created_at DESC);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append records a payload. The payload must be valid JSON.
func (j *Journal) Append(ctx context.Context, p AppendParams) (*Entry, error) {
	if p.Work == "" {
		return nil, fmt.Errorf("append: work is required")
	}
	if !json.Valid(p.Payload) {
		return nil, fmt.Errorf("append: payload is not valid JSON")
	}

	now := time.Now().UTC()
	e := &Entry{
		ID:        j.newID(now),
		Work:      p.Work,
		Chapter:   p.Chapter,
		Payload:   p.Payload,
		Warnings:  p.Warnings,
		CreatedAt: now.Truncate(time.Second),
	}

	var warningsJSON *string
	if len(p.Warnings) > 0 {
		b, _ := json.Marshal(p.Warnings)
		s := string(b)
		warningsJSON = &s
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO facts (id, work, chapter, payload, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Work, e.Chapter, string(e.Payload), warningsJSON, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert facts: %w", err)
	}
	return e, nil
}

// List returns matching entries, newest first. Limit defaults to 20.
func (j *Journal) List(ctx context.Context, p ListParams) ([]Entry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1 = 1"}
	var args []interface{}
	if p.Work != "" {
		where = append(where, "work = ?")
		args = append(args, p.Work)
	}
	if p.Chapter > 0 {
		where = append(where, "chapter = ?")
		args = append(args, p.Chapter)
	}
	if p.Query != "" {
		where = append(where, `payload LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(p.Query)+"%")
	}

	query := fmt.Sprintf(`
		SELECT id, work, chapter, payload, warnings, created_at
		FROM facts
		WHERE %s
		ORDER BY rowid DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Replay calls fn for every entry of work in the order they were
// appended, stopping at the first error.
func (j *Journal) Replay(ctx context.Context, work string, fn func(Entry) error) error {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, work, chapter, payload, warnings, created_at
		 FROM facts WHERE work = ? ORDER BY rowid ASC`, work)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e         Entry
		payload   string
		warnings  sql.NullString
		createdAt string
	)
	if err := s.Scan(&e.ID, &e.Work, &e.Chapter, &payload, &warnings, &createdAt); err != nil {
		return Entry{}, err
	}
	e.Payload = json.RawMessage(payload)
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &e.Warnings); err != nil {
			return Entry{}, fmt.Errorf("decode warnings of %s: %w", e.ID, err)
		}
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at of %s: %w", e.ID, err)
	}
	e.CreatedAt = t
	return e, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
