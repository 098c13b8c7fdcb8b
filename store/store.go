// Package store persists sessions and their settled trees ("artifacts") in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aether_architect/generator"
	"aether_architect/uitree"
)

// ErrNotFound is returned when a session or artifact does not exist.
var ErrNotFound = errors.New("not found")

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides SQLite-backed persistence for sessions and artifacts.
type Store struct {
	db *sql.DB
}

// New returns a Store bound to an existing, migrated database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// SessionRecord is a persisted session brief.
type SessionRecord struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Vibe      string    `json:"vibe,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Artifact is one settled tree of a session.
type Artifact struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Revision  int             `json:"revision"`
	Action    string          `json:"action"`
	Title     string          `json:"title,omitempty"`
	NodeCount int             `json:"node_count"`
	Tree      *uitree.Node    `json:"tree,omitempty"`
	Plan      *generator.Plan `json:"plan,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveSession inserts or updates a session brief.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save session: id is empty")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, prompt, vibe, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET prompt = excluded.prompt, vibe = excluded.vibe`,
		rec.ID, rec.Prompt, rec.Vibe, rec.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession loads a session brief.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, vibe, created_at FROM sessions WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Prompt, &rec.Vibe, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

// SaveArtifact stores a settled tree. ID and CreatedAt are filled in when
// empty; the stored artifact is returned.
func (s *Store) SaveArtifact(ctx context.Context, a Artifact) (Artifact, error) {
	if a.SessionID == "" {
		return Artifact{}, fmt.Errorf("save artifact: session id is empty")
	}
	if a.Tree == nil {
		return Artifact{}, fmt.Errorf("save artifact: tree is nil")
	}
	if a.ID == "" {
		a.ID = uuid.Must(uuid.NewV7()).String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.NodeCount = uitree.Count(a.Tree)
	data, err := json.Marshal(a.Tree)
	if err != nil {
		return Artifact{}, fmt.Errorf("save artifact: encode tree: %w", err)
	}
	var plan []byte
	if a.Plan != nil {
		if plan, err = json.Marshal(a.Plan); err != nil {
			return Artifact{}, fmt.Errorf("save artifact: encode plan: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, session_id, revision, action, title, node_count, tree, plan, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Revision, a.Action, a.Title, a.NodeCount, string(data), string(plan),
		a.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return Artifact{}, fmt.Errorf("save artifact: insert: %w", err)
	}
	return a, nil
}

// ListArtifacts returns a session's artifacts, oldest first, without trees
// or plans.
func (s *Store) ListArtifacts(ctx context.Context, sessionID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, revision, action, title, node_count, created_at
		FROM artifacts WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var created string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Revision, &a.Action, &a.Title, &a.NodeCount, &created); err != nil {
			return nil, fmt.Errorf("list artifacts: scan: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// GetArtifact loads one artifact with its tree and plan.
func (s *Store) GetArtifact(ctx context.Context, id string) (Artifact, error) {
	return s.scanArtifact(ctx, `
		SELECT id, session_id, revision, action, title, node_count, tree, plan, created_at
		FROM artifacts WHERE id = ?`, id)
}

// LatestArtifact loads the most recent artifact of a session.
func (s *Store) LatestArtifact(ctx context.Context, sessionID string) (Artifact, error) {
	return s.scanArtifact(ctx, `
		SELECT id, session_id, revision, action, title, node_count, tree, plan, created_at
		FROM artifacts WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, sessionID)
}

func (s *Store) scanArtifact(ctx context.Context, query string, arg string) (Artifact, error) {
	var a Artifact
	var tree, plan, created string
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&a.ID, &a.SessionID, &a.Revision, &a.Action, &a.Title, &a.NodeCount, &tree, &plan, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("artifact %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact: %w", err)
	}
	if err := json.Unmarshal([]byte(tree), &a.Tree); err != nil {
		return Artifact{}, fmt.Errorf("artifact: decode tree: %w", err)
	}
	if plan != "" {
		if err := json.Unmarshal([]byte(plan), &a.Plan); err != nil {
			return Artifact{}, fmt.Errorf("artifact: decode plan: %w", err)
		}
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return Artifact{}, fmt.Errorf("artifact: %w", err)
	}
	return a, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
