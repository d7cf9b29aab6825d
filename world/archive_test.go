package world

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/internal/testutil"
)

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := testutil.NewMemoryBuilder().
		User("hello", "human").
		Assistant("hi there", "helper").
		ToolJSON("call-1", map[string]any{
			"decision": "approve", "scope": "session", "toolName": "shell_cmd",
		}).
		Build()

	path, err := archiveMemory(dir, "w1", "a1", entries)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "w1"), filepath.Dir(path))

	got, err := ReadArchive(path)
	require.NoError(t, err)
	require.Len(t, got, len(entries))
	for i := range entries {
		assert.Equal(t, entries[i].Role, got[i].Role)
		assert.Equal(t, entries[i].Content, got[i].Content)
		assert.Equal(t, entries[i].ToolCallID, got[i].ToolCallID)
	}
}

func TestClearAgentMemoryArchivesThenEmpties(t *testing.T) {
	dir := t.TempDir()
	m, store := newTestManager(t, func(o *Options) { o.Config.ArchiveDir = dir })
	w, err := m.CreateWorld("w")
	require.NoError(t, err)
	a, err := m.CreateAgent(w.ID, "hoarder")
	require.NoError(t, err)

	ch, cancel := w.Events().Subscribe(64)
	defer cancel()
	_, err = m.SendHumanMessage(context.Background(), w.ID, "remember this")
	require.NoError(t, err)
	drain(t, ch, isAgentMessage("hoarder"))
	require.NotZero(t, a.MemoryLen())

	path, err := m.ClearAgentMemory(w.ID, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	assert.Zero(t, a.MemoryLen())
	stored, err := store.LoadAgent(w.ID, a.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.MemoryLen())

	archived, err := ReadArchive(path)
	require.NoError(t, err)
	assert.NotEmpty(t, archived, "archive must hold the cleared entries")
	assert.Equal(t, "remember this", archived[0].Content)
}

func TestClearAgentMemoryWithoutArchiveDir(t *testing.T) {
	m, _ := newTestManager(t)
	w, err := m.CreateWorld("w")
	require.NoError(t, err)
	a, err := m.CreateAgent(w.ID, "minimalist")
	require.NoError(t, err)
	a.AppendMemory(core.NewMemoryEntry(core.RoleUser, "note", "human"))

	path, err := m.ClearAgentMemory(w.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Zero(t, a.MemoryLen())
}
