package docsync

import (
	"testing"
	"time"

	"github.com/localcore/client/pkg/store"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{DBPath: store.MemoryPath, NodeID: "test-node"})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineInsertAndGet(t *testing.T) {
	e := newTestEngine(t)

	doc, err := e.Insert("tasks", map[string]string{"title": "Buy milk"})
	require.NoError(t, err)

	got, err := e.Get("tasks", doc.ID)
	require.NoError(t, err)
	require.Equal(t, "Buy milk", got.Fields["title"].Value)
}

func TestEngineUpdateField(t *testing.T) {
	e := newTestEngine(t)

	doc, err := e.Insert("tasks", map[string]string{"title": "Buy milk", "done": "false"})
	require.NoError(t, err)

	_, err = e.Update("tasks", doc.ID, "done", "true")
	require.NoError(t, err)

	got, err := e.Get("tasks", doc.ID)
	require.NoError(t, err)
	require.Equal(t, "true", got.Fields["done"].Value)
}

func TestEngineDeleteIsTombstone(t *testing.T) {
	e := newTestEngine(t)

	doc, err := e.Insert("tasks", map[string]string{"title": "Delete me"})
	require.NoError(t, err)

	require.NoError(t, e.Delete("tasks", doc.ID))

	_, err = e.Get("tasks", doc.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEngineQueryOrdersByUpdatedAtDescending(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.Insert("tasks", map[string]string{"title": "first"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := e.Insert("tasks", map[string]string{"title": "second"})
	require.NoError(t, err)

	docs, err := e.Query("tasks", 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, second.ID, docs[0].ID)
	require.Equal(t, first.ID, docs[1].ID)
}

func TestEngineQueryIsolatesCollections(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Insert("tasks", map[string]string{"title": "a task"})
	require.NoError(t, err)
	_, err = e.Insert("notes", map[string]string{"title": "a note"})
	require.NoError(t, err)

	tasks, err := e.Query("tasks", 100)
	require.NoError(t, err)
	notes, err := e.Query("notes", 100)
	require.NoError(t, err)

	require.Len(t, tasks, 1)
	require.Len(t, notes, 1)
}

func TestEngineUnsyncedOpsAndMarkSynced(t *testing.T) {
	e := newTestEngine(t)

	doc1, err := e.Insert("tasks", map[string]string{"title": "one"})
	require.NoError(t, err)
	_, err = e.Insert("tasks", map[string]string{"title": "two"})
	require.NoError(t, err)

	ops, err := e.GetUnsyncedOps(100)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	var toMark []string
	for _, op := range ops {
		if op.DocumentID == doc1.ID {
			toMark = append(toMark, op.ID)
		}
	}
	count, err := e.MarkSynced(toMark)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	remaining, err := e.GetUnsyncedOps(100)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestEngineStats(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Insert("tasks", map[string]string{"title": "task"})
	require.NoError(t, err)
	_, err = e.Insert("notes", map[string]string{"title": "note"})
	require.NoError(t, err)

	stats, err := e.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalDocuments)
	require.Equal(t, 2, stats.Collections)
	require.Equal(t, 2, stats.UnsyncedOps)
}

func TestEnginePurgeOldOpsOnlyRemovesSyncedPastCutoff(t *testing.T) {
	e := newTestEngine(t)

	doc, err := e.Insert("tasks", map[string]string{"title": "task"})
	require.NoError(t, err)

	ops, err := e.GetUnsyncedOps(100)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	_, err = e.MarkSynced([]string{ops[0].ID})
	require.NoError(t, err)

	// A cutoff in the future should purge the now-synced op.
	purged, err := e.PurgeOldOps(-time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	stats, err := e.Stats()
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalOperations)
	require.Equal(t, 1, stats.TotalDocuments)
	_ = doc
}
