package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yysun/agent-world-sub006/core"
)

// eachStore runs fn against every backend so the three implementations
// stay behaviorally interchangeable.
func eachStore(t *testing.T, fn func(t *testing.T, s core.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewInMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "world.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		fn(t, s)
	})
}

func testWorld(name string) *core.World {
	return core.NewWorld(name, func(o *core.WorldOptions) {
		o.Description = "a test world"
		o.TurnLimit = 7
	})
}

// -------------------- World Tests --------------------

func TestStore_WorldRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		w := testWorld("alpha")
		w.CurrentSessionID = "sess-1"
		require.NoError(t, s.SaveWorld(w))

		got, err := s.LoadWorld(w.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, w.ID, got.ID)
		assert.Equal(t, "alpha", got.Name)
		assert.Equal(t, "a test world", got.Description)
		assert.Equal(t, 7, got.TurnLimit)
		assert.Equal(t, "sess-1", got.CurrentSessionID)
		assert.WithinDuration(t, w.CreatedAt, got.CreatedAt, time.Second)
		assert.Equal(t, 0, got.AgentCount(), "loaded worlds start with an empty roster")
	})
}

func TestStore_LoadMissingWorld(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		got, err := s.LoadWorld("nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_ListWorldsNewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		base := time.Now().UTC()
		for i, name := range []string{"old", "mid", "new"} {
			w := testWorld(name)
			w.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.SaveWorld(w))
		}

		worlds, err := s.ListWorlds()
		require.NoError(t, err)
		require.Len(t, worlds, 3)
		assert.Equal(t, "new", worlds[0].Name)
		assert.Equal(t, "mid", worlds[1].Name)
		assert.Equal(t, "old", worlds[2].Name)
	})
}

func TestStore_DeleteWorldClearsMessageLog(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		w := testWorld("doomed")
		require.NoError(t, s.SaveWorld(w))
		require.NoError(t, s.SaveMessage(w.ID, core.NewMessage("hello", core.HumanSender(""))))

		require.NoError(t, s.DeleteWorld(w.ID))

		got, err := s.LoadWorld(w.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		msgs, err := s.ListMessages(w.ID, "")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

// -------------------- Agent Tests --------------------

func testAgent(name string) *core.Agent {
	return core.NewAgent(name, func(o *core.AgentOptions) {
		o.Description = "a test agent"
		o.Provider = "anthropic"
		o.Model = "claude-3-5-haiku-latest"
		o.SystemPrompt = "You are {{.Name}}."
	})
}

func TestStore_AgentRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		a := testAgent("scout")
		a.SetCallCount(3)
		require.NoError(t, s.SaveAgent("w1", a))
		require.NoError(t, s.AppendMemory("w1", a.ID,
			core.NewMemoryEntry(core.RoleUser, "hi @scout", "human"),
			core.NewMemoryEntry(core.RoleAssistant, "hello", "scout"),
		))

		got, err := s.LoadAgent("w1", a.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, "scout", got.Name)
		assert.Equal(t, "anthropic", got.Provider)
		assert.Equal(t, "claude-3-5-haiku-latest", got.Model)
		assert.Equal(t, "You are {{.Name}}.", got.SystemPrompt)
		assert.Equal(t, 3, got.CallCount())

		mem := got.GetMemory()
		require.Len(t, mem, 2)
		assert.Equal(t, "hi @scout", mem[0].Content)
		assert.Equal(t, core.RoleAssistant, mem[1].Role)
		assert.Equal(t, "scout", mem[1].Sender)
	})
}

func TestStore_LoadMissingAgent(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		got, err := s.LoadAgent("w1", "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_AppendMemoryToMissingAgentIsNoOp(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		err := s.AppendMemory("w1", "ghost", core.NewMemoryEntry(core.RoleUser, "x", "human"))
		require.NoError(t, err)

		got, err := s.LoadAgent("w1", "ghost")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_AppendMemoryKeepsOrderAcrossBatches(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		a := testAgent("scribe")
		require.NoError(t, s.SaveAgent("w1", a))
		require.NoError(t, s.AppendMemory("w1", a.ID,
			core.NewMemoryEntry(core.RoleUser, "one", "human")))
		require.NoError(t, s.AppendMemory("w1", a.ID,
			core.NewMemoryEntry(core.RoleAssistant, "two", "scribe"),
			core.NewMemoryEntry(core.RoleUser, "three", "human")))

		got, err := s.LoadAgent("w1", a.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		mem := got.GetMemory()
		require.Len(t, mem, 3)
		assert.Equal(t, "one", mem[0].Content)
		assert.Equal(t, "two", mem[1].Content)
		assert.Equal(t, "three", mem[2].Content)
	})
}

func TestStore_ClearMemory(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		a := testAgent("amnesiac")
		require.NoError(t, s.SaveAgent("w1", a))
		require.NoError(t, s.AppendMemory("w1", a.ID,
			core.NewMemoryEntry(core.RoleUser, "remember me", "human")))

		require.NoError(t, s.ClearMemory("w1", a.ID))

		got, err := s.LoadAgent("w1", a.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got.GetMemory())
	})
}

func TestStore_ListAgentsSortedByName(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		require.NoError(t, s.SaveAgent("w1", testAgent("zoe")))
		require.NoError(t, s.SaveAgent("w1", testAgent("alice")))
		require.NoError(t, s.SaveAgent("other", testAgent("mallory")))

		agents, err := s.ListAgents("w1")
		require.NoError(t, err)
		require.Len(t, agents, 2)
		assert.Equal(t, "alice", agents[0].Name)
		assert.Equal(t, "zoe", agents[1].Name)
	})
}

func TestStore_DeleteAgent(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		a := testAgent("gone")
		require.NoError(t, s.SaveAgent("w1", a))
		require.NoError(t, s.AppendMemory("w1", a.ID,
			core.NewMemoryEntry(core.RoleUser, "bye", "human")))

		require.NoError(t, s.DeleteAgent("w1", a.ID))

		got, err := s.LoadAgent("w1", a.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

// -------------------- Chat Tests --------------------

func TestStore_ChatRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		c := core.NewChatSession("w1")
		c.Name = "deploy plan"
		c.MessageCount = 4
		require.NoError(t, s.SaveChat("w1", c))

		got, err := s.LoadChat("w1", c.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, "w1", got.WorldID)
		assert.Equal(t, "deploy plan", got.Name)
		assert.Equal(t, 4, got.MessageCount)
	})
}

func TestStore_LoadMissingChat(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		got, err := s.LoadChat("w1", "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_ListChatsNewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		base := time.Now().UTC()
		names := []string{"old", "mid", "new"}
		for i, name := range names {
			c := core.NewChatSession("w1")
			c.Name = name
			c.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.SaveChat("w1", c))
		}

		chats, err := s.ListChats("w1")
		require.NoError(t, err)
		require.Len(t, chats, 3)
		assert.Equal(t, "new", chats[0].Name)
		assert.Equal(t, "old", chats[2].Name)
	})
}

func TestStore_DeleteChat(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		c := core.NewChatSession("w1")
		require.NoError(t, s.SaveChat("w1", c))
		require.NoError(t, s.DeleteChat("w1", c.ID))

		got, err := s.LoadChat("w1", c.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

// -------------------- Message Log Tests --------------------

func TestStore_MessagesKeepPublishOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		m1 := core.NewMessage("first", core.HumanSender(""))
		m1.SessionID = "s1"
		m2 := core.NewMessage("second", core.AgentSender("a1"))
		m2.SessionID = "s1"
		m3 := core.NewMessage("third", core.HumanSender(""))
		m3.SessionID = "s2"
		for _, m := range []core.Message{m1, m2, m3} {
			require.NoError(t, s.SaveMessage("w1", m))
		}

		all, err := s.ListMessages("w1", "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "first", all[0].Content)
		assert.Equal(t, "second", all[1].Content)
		assert.Equal(t, "third", all[2].Content)
		assert.Equal(t, core.SenderAgent, all[1].Sender.Kind)

		s1, err := s.ListMessages("w1", "s1")
		require.NoError(t, err)
		require.Len(t, s1, 2)
		assert.Equal(t, "first", s1[0].Content)
		assert.Equal(t, "second", s1[1].Content)
	})
}

func TestStore_ListMessagesMissingWorld(t *testing.T) {
	eachStore(t, func(t *testing.T, s core.Store) {
		msgs, err := s.ListMessages("nowhere", "")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

// -------------------- Detachment Tests --------------------

func TestInMemoryStore_HandsOutDetachedCopies(t *testing.T) {
	s := NewInMemoryStore()
	w := testWorld("iso")
	require.NoError(t, s.SaveWorld(w))

	w.Name = "mutated after save"
	got, err := s.LoadWorld(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "iso", got.Name, "mutating the saved pointer must not reach the store")

	got.Name = "mutated after load"
	again, err := s.LoadWorld(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "iso", again.Name, "mutating a loaded copy must not reach the store")
}

func TestInMemoryStore_MemorySliceIsDetached(t *testing.T) {
	s := NewInMemoryStore()
	a := testAgent("iso")
	require.NoError(t, s.SaveAgent("w1", a))
	require.NoError(t, s.AppendMemory("w1", a.ID,
		core.NewMemoryEntry(core.RoleUser, "original", "human")))

	got, err := s.LoadAgent("w1", a.ID)
	require.NoError(t, err)
	mem := got.GetMemory()
	mem[0].Content = "tampered"

	again, err := s.LoadAgent("w1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.GetMemory()[0].Content)
}
