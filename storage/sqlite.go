package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yysun/agent-world-sub006/core"
)

// SQLiteStore is a durable core.Store backed by a single sqlite file.
// The connection pool is pinned to one connection, which together with
// WAL keeps writers serialized without table locks getting in the way of
// the fire-and-forget persistence writes.
type SQLiteStore struct {
	db   *sql.DB
	once sync.Once
}

var _ core.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if necessary) the store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is a decent
	// durability/perf tradeoff for a chat log.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worlds (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			turn_limit INTEGER NOT NULL DEFAULT 0,
			current_session_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS agents (
			world_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			call_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS agent_memory (
			world_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			entry_json TEXT NOT NULL,
			PRIMARY KEY (world_id, agent_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS chats (
			world_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			message_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_world ON messages(world_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(world_id, session_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database. Idempotent.
func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", v, err)
	}
	return t, nil
}

// SaveWorld upserts the world's persistent fields.
func (s *SQLiteStore) SaveWorld(w *core.World) error {
	snap := w.Snapshot()
	_, err := s.db.Exec(`INSERT INTO worlds (id, name, description, turn_limit, current_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			turn_limit = excluded.turn_limit,
			current_session_id = excluded.current_session_id,
			updated_at = excluded.updated_at`,
		snap.ID, snap.Name, snap.Description, snap.TurnLimit, snap.CurrentSessionID,
		formatTime(snap.CreatedAt), formatTime(snap.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save world %s: %w", snap.ID, err)
	}
	return nil
}

// LoadWorld fetches a world by id, (nil, nil) when missing.
func (s *SQLiteStore) LoadWorld(id string) (*core.World, error) {
	row := s.db.QueryRow(`SELECT id, name, description, turn_limit, current_session_id, created_at, updated_at
		FROM worlds WHERE id = ?`, id)
	w, err := scanWorld(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// ListWorlds returns all worlds, most recently updated first.
func (s *SQLiteStore) ListWorlds() ([]*core.World, error) {
	rows, err := s.db.Query(`SELECT id, name, description, turn_limit, current_session_id, created_at, updated_at
		FROM worlds ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list worlds: %w", err)
	}
	defer rows.Close()

	var out []*core.World
	for rows.Next() {
		w, err := scanWorld(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorld(r rowScanner) (*core.World, error) {
	var (
		id, name, description, currentSession string
		turnLimit                             int
		createdAt, updatedAt                  string
	)
	if err := r.Scan(&id, &name, &description, &turnLimit, &currentSession, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan world: %w", err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	w := core.NewWorld(name, func(o *core.WorldOptions) {
		o.ID = id
		o.Description = description
		o.TurnLimit = turnLimit
	})
	w.CurrentSessionID = currentSession
	w.CreatedAt = created
	w.UpdatedAt = updated
	return w, nil
}

// DeleteWorld removes the world row and its message log.
func (s *SQLiteStore) DeleteWorld(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete world %s: %w", id, err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM worlds WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete world %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE world_id = ?`, id); err != nil {
		return fmt.Errorf("delete world %s messages: %w", id, err)
	}
	return tx.Commit()
}

// SaveAgent upserts configuration and the call counter. Memory changes
// flow through AppendMemory/ClearMemory.
func (s *SQLiteStore) SaveAgent(worldID string, a *core.Agent) error {
	_, err := s.db.Exec(`INSERT INTO agents (world_id, id, name, description, provider, model, system_prompt, call_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(world_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			provider = excluded.provider,
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			call_count = excluded.call_count,
			updated_at = excluded.updated_at`,
		worldID, a.ID, a.Name, a.Description, a.Provider, a.Model, a.SystemPrompt,
		a.CallCount(), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save agent %s/%s: %w", worldID, a.ID, err)
	}
	return nil
}

// LoadAgent fetches an agent with its full memory, (nil, nil) when missing.
func (s *SQLiteStore) LoadAgent(worldID, agentID string) (*core.Agent, error) {
	row := s.db.QueryRow(`SELECT id, name, description, provider, model, system_prompt, call_count, created_at, updated_at
		FROM agents WHERE world_id = ? AND id = ?`, worldID, agentID)

	var (
		id, name, description, provider, model, systemPrompt string
		callCount                                            int
		createdAt, updatedAt                                 string
	)
	err := row.Scan(&id, &name, &description, &provider, &model, &systemPrompt, &callCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load agent %s/%s: %w", worldID, agentID, err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	a := core.NewAgent(name, func(o *core.AgentOptions) {
		o.ID = id
		o.Description = description
		o.Provider = provider
		o.Model = model
		o.SystemPrompt = systemPrompt
	})
	a.CreatedAt = created
	a.UpdatedAt = updated
	a.SetCallCount(callCount)

	memory, err := s.loadMemory(worldID, agentID)
	if err != nil {
		return nil, err
	}
	a.SetMemory(memory)
	return a, nil
}

func (s *SQLiteStore) loadMemory(worldID, agentID string) ([]core.MemoryEntry, error) {
	rows, err := s.db.Query(`SELECT entry_json FROM agent_memory
		WHERE world_id = ? AND agent_id = ? ORDER BY seq`, worldID, agentID)
	if err != nil {
		return nil, fmt.Errorf("load memory %s/%s: %w", worldID, agentID, err)
	}
	defer rows.Close()

	var out []core.MemoryEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		var e core.MemoryEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode memory entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteAgent removes the agent row and its memory.
func (s *SQLiteStore) DeleteAgent(worldID, agentID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete agent %s/%s: %w", worldID, agentID, err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM agents WHERE world_id = ? AND id = ?`, worldID, agentID); err != nil {
		return fmt.Errorf("delete agent %s/%s: %w", worldID, agentID, err)
	}
	if _, err := tx.Exec(`DELETE FROM agent_memory WHERE world_id = ? AND agent_id = ?`, worldID, agentID); err != nil {
		return fmt.Errorf("delete agent %s/%s memory: %w", worldID, agentID, err)
	}
	return tx.Commit()
}

// ListAgents returns a world's agents sorted by name.
func (s *SQLiteStore) ListAgents(worldID string) ([]*core.Agent, error) {
	rows, err := s.db.Query(`SELECT id FROM agents WHERE world_id = ? ORDER BY name`, worldID)
	if err != nil {
		return nil, fmt.Errorf("list agents %s: %w", worldID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*core.Agent, 0, len(ids))
	for _, id := range ids {
		a, err := s.LoadAgent(worldID, id)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// AppendMemory appends entries to the stored memory log.
func (s *SQLiteStore) AppendMemory(worldID, agentID string, entries ...core.MemoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append memory %s/%s: %w", worldID, agentID, err)
	}
	defer tx.Rollback()

	var maxSeq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), -1) FROM agent_memory
		WHERE world_id = ? AND agent_id = ?`, worldID, agentID).Scan(&maxSeq); err != nil {
		return fmt.Errorf("append memory %s/%s: %w", worldID, agentID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO agent_memory (world_id, agent_id, seq, entry_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("append memory %s/%s: %w", worldID, agentID, err)
	}
	defer stmt.Close()

	for i, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode memory entry: %w", err)
		}
		if _, err := stmt.Exec(worldID, agentID, maxSeq+1+i, string(raw)); err != nil {
			return fmt.Errorf("append memory %s/%s: %w", worldID, agentID, err)
		}
	}
	return tx.Commit()
}

// ClearMemory empties the stored memory log.
func (s *SQLiteStore) ClearMemory(worldID, agentID string) error {
	if _, err := s.db.Exec(`DELETE FROM agent_memory WHERE world_id = ? AND agent_id = ?`, worldID, agentID); err != nil {
		return fmt.Errorf("clear memory %s/%s: %w", worldID, agentID, err)
	}
	return nil
}

// SaveChat upserts a chat session.
func (s *SQLiteStore) SaveChat(worldID string, c *core.ChatSession) error {
	_, err := s.db.Exec(`INSERT INTO chats (world_id, id, name, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(world_id, id) DO UPDATE SET
			name = excluded.name,
			message_count = excluded.message_count,
			updated_at = excluded.updated_at`,
		worldID, c.ID, c.Name, c.MessageCount, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save chat %s/%s: %w", worldID, c.ID, err)
	}
	return nil
}

// LoadChat fetches a session by id, (nil, nil) when missing.
func (s *SQLiteStore) LoadChat(worldID, chatID string) (*core.ChatSession, error) {
	row := s.db.QueryRow(`SELECT id, name, message_count, created_at, updated_at
		FROM chats WHERE world_id = ? AND id = ?`, worldID, chatID)
	c, err := scanChat(row, worldID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// DeleteChat removes a session.
func (s *SQLiteStore) DeleteChat(worldID, chatID string) error {
	if _, err := s.db.Exec(`DELETE FROM chats WHERE world_id = ? AND id = ?`, worldID, chatID); err != nil {
		return fmt.Errorf("delete chat %s/%s: %w", worldID, chatID, err)
	}
	return nil
}

// ListChats returns a world's sessions, most recently updated first.
func (s *SQLiteStore) ListChats(worldID string) ([]*core.ChatSession, error) {
	rows, err := s.db.Query(`SELECT id, name, message_count, created_at, updated_at
		FROM chats WHERE world_id = ? ORDER BY updated_at DESC`, worldID)
	if err != nil {
		return nil, fmt.Errorf("list chats %s: %w", worldID, err)
	}
	defer rows.Close()

	var out []*core.ChatSession
	for rows.Next() {
		c, err := scanChat(rows, worldID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChat(r rowScanner, worldID string) (*core.ChatSession, error) {
	var (
		id, name             string
		messageCount         int
		createdAt, updatedAt string
	)
	if err := r.Scan(&id, &name, &messageCount, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &core.ChatSession{
		ID:           id,
		WorldID:      worldID,
		Name:         name,
		MessageCount: messageCount,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

// SaveMessage appends a message to the world's publish-ordered log.
func (s *SQLiteStore) SaveMessage(worldID string, m core.Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO messages (world_id, session_id, message_json) VALUES (?, ?, ?)`,
		worldID, m.SessionID, string(raw)); err != nil {
		return fmt.Errorf("save message %s: %w", worldID, err)
	}
	return nil
}

// ListMessages returns the log in publish order, optionally filtered to
// one session.
func (s *SQLiteStore) ListMessages(worldID, sessionID string) ([]core.Message, error) {
	query := `SELECT message_json FROM messages WHERE world_id = ? ORDER BY seq`
	args := []any{worldID}
	if sessionID != "" {
		query = `SELECT message_json FROM messages WHERE world_id = ? AND session_id = ? ORDER BY seq`
		args = append(args, sessionID)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages %s: %w", worldID, err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		var m core.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
