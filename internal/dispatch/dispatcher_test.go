package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/internal/state"
	"github.com/lumenlabs/feedstream/pkg/publishers"
)

type capturePublisher struct {
	mu     sync.Mutex
	id     string
	events []publishers.ItemEvent
	fail   bool
}

func (p *capturePublisher) ID() string   { return p.id }
func (p *capturePublisher) Type() string { return "capture" }

func (p *capturePublisher) Publish(_ context.Context, evt publishers.ItemEvent) error {
	if p.fail {
		return errors.New("sink unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func openStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func item(id string) domain.Item {
	return domain.Item{ID: id, Title: "t-" + id, Link: "https://example.com/" + id, SourceID: "src", Category: "Tech"}
}

func TestDispatch_OnlyNewItemsPublished(t *testing.T) {
	store := openStore(t)
	pub := &capturePublisher{id: "cap"}
	d := New(store, []publishers.Publisher{pub}, nil)

	d.Dispatch(context.Background(), []domain.Item{item("a"), item("b")})
	require.Len(t, pub.events, 2)

	d.Dispatch(context.Background(), []domain.Item{item("a"), item("b"), item("c")})
	require.Len(t, pub.events, 3)
	assert.Equal(t, "c", pub.events[2].ItemID)
}

func TestDispatch_EventCarriesItemFields(t *testing.T) {
	store := openStore(t)
	pub := &capturePublisher{id: "cap"}
	d := New(store, []publishers.Publisher{pub}, nil)

	d.Dispatch(context.Background(), []domain.Item{item("a")})
	require.Len(t, pub.events, 1)

	evt := pub.events[0]
	assert.Equal(t, "a", evt.ItemID)
	assert.Equal(t, "t-a", evt.Title)
	assert.Equal(t, "https://example.com/a", evt.Link)
	assert.Equal(t, "src", evt.SourceID)
	assert.Equal(t, "Tech", evt.Category)
	assert.False(t, evt.ObservedAt.IsZero())
}

func TestDispatch_FanOutToAllPublishers(t *testing.T) {
	store := openStore(t)
	first := &capturePublisher{id: "first"}
	second := &capturePublisher{id: "second"}
	d := New(store, []publishers.Publisher{first, second}, nil)

	d.Dispatch(context.Background(), []domain.Item{item("a")})

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
}

func TestDispatch_PublisherFailureDoesNotBlockOthers(t *testing.T) {
	store := openStore(t)
	broken := &capturePublisher{id: "broken", fail: true}
	working := &capturePublisher{id: "working"}
	d := New(store, []publishers.Publisher{broken, working}, nil)

	d.Dispatch(context.Background(), []domain.Item{item("a")})

	assert.Empty(t, broken.events)
	assert.Len(t, working.events, 1)

	// The item was journaled regardless, so a recovered sink does not get
	// a replay on the next cycle.
	d.Dispatch(context.Background(), []domain.Item{item("a")})
	assert.Len(t, working.events, 1)
}

func TestDispatch_NoPublishersStillJournals(t *testing.T) {
	store := openStore(t)
	d := New(store, nil, nil)

	d.Dispatch(context.Background(), []domain.Item{item("a")})

	seen, err := store.Seen("a")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDispatch_MarksContributingSources(t *testing.T) {
	store := openStore(t)
	d := New(store, nil, nil)

	d.Dispatch(context.Background(), []domain.Item{item("a")})

	at, err := store.SourceRefreshedAt("src")
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	at, err = store.SourceRefreshedAt("other")
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}
