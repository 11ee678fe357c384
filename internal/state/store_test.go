package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/feedstream/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func item(id string) domain.Item {
	return domain.Item{ID: id, Title: id, SourceID: "src"}
}

func TestMarkNew_FiltersRepeats(t *testing.T) {
	store := openTestStore(t)

	fresh, err := store.MarkNew([]domain.Item{item("a"), item("b")})
	require.NoError(t, err)
	require.Len(t, fresh, 2)

	fresh, err = store.MarkNew([]domain.Item{item("a"), item("b"), item("c")})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "c", fresh[0].ID)

	fresh, err = store.MarkNew([]domain.Item{item("a"), item("c")})
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestMarkNew_EmptyInput(t *testing.T) {
	store := openTestStore(t)

	fresh, err := store.MarkNew(nil)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestSeen(t *testing.T) {
	store := openTestStore(t)

	seen, err := store.Seen("x")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = store.MarkNew([]domain.Item{item("x")})
	require.NoError(t, err)

	seen, err = store.Seen("x")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSeen_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.MarkNew([]domain.Item{item("persisted")})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	seen, err := store.Seen("persisted")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSourceMarks(t *testing.T) {
	store := openTestStore(t)

	at, err := store.SourceRefreshedAt("src")
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	mark := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.MarkSourceRefreshed("src", mark))

	at, err = store.SourceRefreshedAt("src")
	require.NoError(t, err)
	assert.True(t, at.Equal(mark))
}
