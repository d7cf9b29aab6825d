package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yysun/agent-world-sub006/core"
)

// FileStore is a core.Store persisting to a JSON file tree:
//
//	<root>/worlds/<worldID>/world.json
//	<root>/worlds/<worldID>/agents/<agentID>/agent.json
//	<root>/worlds/<worldID>/agents/<agentID>/memory.json
//	<root>/worlds/<worldID>/chats/<chatID>.json
//	<root>/worlds/<worldID>/messages.jsonl
//
// Documents are written atomically (temp file + rename); the message log
// is append-only JSONL. The layout is meant to stay human-inspectable:
// every file is plain JSON.
type FileStore struct {
	root string
	mu   sync.Mutex
}

var _ core.Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty store root")
	}
	if err := os.MkdirAll(filepath.Join(dir, "worlds"), 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) worldDir(worldID string) string {
	return filepath.Join(s.root, "worlds", worldID)
}

func (s *FileStore) agentDir(worldID, agentID string) string {
	return filepath.Join(s.worldDir(worldID), "agents", agentID)
}

func (s *FileStore) chatPath(worldID, chatID string) string {
	return filepath.Join(s.worldDir(worldID), "chats", chatID+".json")
}

// worldRecord mirrors the persistent fields of core.World with identical
// JSON tags.
type worldRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	TurnLimit        int       `json:"turnLimit,omitempty"`
	CurrentSessionID string    `json:"currentSessionId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// agentRecord mirrors core.Agent's persistent fields plus the counter,
// which is unexported on the entity.
type agentRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"systemPrompt,omitempty"`
	CallCount    int       `json:"callCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SaveWorld writes world.json.
func (s *FileStore) SaveWorld(w *core.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := w.Snapshot()
	rec := worldRecord{
		ID:               snap.ID,
		Name:             snap.Name,
		Description:      snap.Description,
		TurnLimit:        snap.TurnLimit,
		CurrentSessionID: snap.CurrentSessionID,
		CreatedAt:        snap.CreatedAt,
		UpdatedAt:        snap.UpdatedAt,
	}
	return s.writeJSON(filepath.Join(s.worldDir(snap.ID), "world.json"), rec)
}

// LoadWorld reads world.json, (nil, nil) when missing.
func (s *FileStore) LoadWorld(id string) (*core.World, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadWorldLocked(id)
}

func (s *FileStore) loadWorldLocked(id string) (*core.World, error) {
	var rec worldRecord
	ok, err := s.readJSON(filepath.Join(s.worldDir(id), "world.json"), &rec)
	if err != nil || !ok {
		return nil, err
	}
	w := core.NewWorld(rec.Name, func(o *core.WorldOptions) {
		o.ID = rec.ID
		o.Description = rec.Description
		o.TurnLimit = rec.TurnLimit
	})
	w.CurrentSessionID = rec.CurrentSessionID
	w.CreatedAt = rec.CreatedAt
	w.UpdatedAt = rec.UpdatedAt
	return w, nil
}

// DeleteWorld removes the whole world directory. The file layout nests
// agents, chats and the message log under it, so the manager's cascade
// finds nothing left to do.
func (s *FileStore) DeleteWorld(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.worldDir(id))
}

// ListWorlds returns all worlds, most recently updated first.
func (s *FileStore) ListWorlds() ([]*core.World, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dirs, err := os.ReadDir(filepath.Join(s.root, "worlds"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list worlds: %w", err)
	}
	var out []*core.World
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		w, err := s.loadWorldLocked(d.Name())
		if err != nil {
			return nil, err
		}
		if w != nil {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// SaveAgent writes agent.json (configuration and counter).
func (s *FileStore) SaveAgent(worldID string, a *core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := agentRecord{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Provider:     a.Provider,
		Model:        a.Model,
		SystemPrompt: a.SystemPrompt,
		CallCount:    a.CallCount(),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	return s.writeJSON(filepath.Join(s.agentDir(worldID, a.ID), "agent.json"), rec)
}

// LoadAgent reads agent.json + memory.json, (nil, nil) when missing.
func (s *FileStore) LoadAgent(worldID, agentID string) (*core.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAgentLocked(worldID, agentID)
}

func (s *FileStore) loadAgentLocked(worldID, agentID string) (*core.Agent, error) {
	var rec agentRecord
	ok, err := s.readJSON(filepath.Join(s.agentDir(worldID, agentID), "agent.json"), &rec)
	if err != nil || !ok {
		return nil, err
	}
	a := core.NewAgent(rec.Name, func(o *core.AgentOptions) {
		o.ID = rec.ID
		o.Description = rec.Description
		o.Provider = rec.Provider
		o.Model = rec.Model
		o.SystemPrompt = rec.SystemPrompt
	})
	a.CreatedAt = rec.CreatedAt
	a.UpdatedAt = rec.UpdatedAt
	a.SetCallCount(rec.CallCount)

	var memory []core.MemoryEntry
	if _, err := s.readJSON(filepath.Join(s.agentDir(worldID, agentID), "memory.json"), &memory); err != nil {
		return nil, err
	}
	a.SetMemory(memory)
	return a, nil
}

// DeleteAgent removes the agent directory (configuration and memory).
func (s *FileStore) DeleteAgent(worldID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.agentDir(worldID, agentID))
}

// ListAgents returns a world's agents sorted by name.
func (s *FileStore) ListAgents(worldID string) ([]*core.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dirs, err := os.ReadDir(filepath.Join(s.worldDir(worldID), "agents"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list agents %s: %w", worldID, err)
	}
	var out []*core.Agent
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		a, err := s.loadAgentLocked(worldID, d.Name())
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AppendMemory appends entries to memory.json.
func (s *FileStore) AppendMemory(worldID, agentID string, entries ...core.MemoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(filepath.Join(s.agentDir(worldID, agentID), "agent.json")); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("append memory %s/%s: %w", worldID, agentID, err)
	}

	path := filepath.Join(s.agentDir(worldID, agentID), "memory.json")
	var memory []core.MemoryEntry
	if _, err := s.readJSON(path, &memory); err != nil {
		return err
	}
	memory = append(memory, entries...)
	return s.writeJSON(path, memory)
}

// ClearMemory truncates memory.json.
func (s *FileStore) ClearMemory(worldID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.agentDir(worldID, agentID), "memory.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return s.writeJSON(path, []core.MemoryEntry{})
}

// SaveChat writes chats/<id>.json.
func (s *FileStore) SaveChat(worldID string, c *core.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(s.chatPath(worldID, c.ID), c)
}

// LoadChat reads a session, (nil, nil) when missing.
func (s *FileStore) LoadChat(worldID, chatID string) (*core.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadChatLocked(worldID, chatID)
}

func (s *FileStore) loadChatLocked(worldID, chatID string) (*core.ChatSession, error) {
	var c core.ChatSession
	ok, err := s.readJSON(s.chatPath(worldID, chatID), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// DeleteChat removes a session file.
func (s *FileStore) DeleteChat(worldID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.chatPath(worldID, chatID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListChats returns a world's sessions, most recently updated first.
func (s *FileStore) ListChats(worldID string) ([]*core.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := os.ReadDir(filepath.Join(s.worldDir(worldID), "chats"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list chats %s: %w", worldID, err)
	}
	var out []*core.ChatSession
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		c, err := s.loadChatLocked(worldID, f.Name()[:len(f.Name())-len(".json")])
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// SaveMessage appends one JSONL line to the world's message log.
func (s *FileStore) SaveMessage(worldID string, m core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.worldDir(worldID), 0o755); err != nil {
		return fmt.Errorf("save message %s: %w", worldID, err)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.worldDir(worldID), "messages.jsonl"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open message log %s: %w", worldID, err)
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("write message log %s: %w", worldID, err)
	}
	return nil
}

// ListMessages scans the JSONL log in publish order, optionally filtered
// to one session.
func (s *FileStore) ListMessages(worldID, sessionID string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(filepath.Join(s.worldDir(worldID), "messages.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open message log %s: %w", worldID, err)
	}
	defer f.Close()

	var out []core.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var m core.Message
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			return nil, fmt.Errorf("decode message line: %w", err)
		}
		if sessionID != "" && m.SessionID != sessionID {
			continue
		}
		out = append(out, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read message log %s: %w", worldID, err)
	}
	return out, nil
}

// readJSON decodes path into v, reporting whether the file existed.
func (s *FileStore) readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// writeJSON writes v to path atomically via a temp file in the same
// directory.
func (s *FileStore) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("temp for %s: %w", path, err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp.Name())
		if werr != nil {
			return fmt.Errorf("write %s: %w", path, werr)
		}
		return fmt.Errorf("close %s: %w", path, cerr)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
