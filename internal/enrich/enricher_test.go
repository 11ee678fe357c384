package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/pkg/httpclient"
)

type fakeResponse struct {
	status int
	body   []byte
}

func (r *fakeResponse) StatusCode() int { return r.status }
func (r *fakeResponse) Body() []byte    { return r.body }

type fakeClient struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	status map[string]int
	calls  []string
}

func (c *fakeClient) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, url)

	if err, ok := c.errs[url]; ok {
		return nil, err
	}
	status := 200
	if s, ok := c.status[url]; ok {
		status = s
	}
	return &fakeResponse{status: status, body: []byte(c.pages[url])}, nil
}

func articlePage(image, description string) string {
	return `<html><head>
<meta property="og:image" content="` + image + `">
<meta property="og:description" content="` + description + `">
</head><body>article</body></html>`
}

func TestEnrich_FillsMissingImage(t *testing.T) {
	client := &fakeClient{pages: map[string]string{
		"https://example.com/a": articlePage("https://cdn.example.com/a.jpg", "about a"),
	}}
	e := New(client, 2, 0, nil)

	items := []domain.Item{{ID: "a", Link: "https://example.com/a", Summary: "already set"}}
	out := e.Enrich(context.Background(), items)

	require.Len(t, out, 1)
	assert.Equal(t, "https://cdn.example.com/a.jpg", out[0].ImageURL)
	assert.Equal(t, "already set", out[0].Summary, "existing summary is kept")
	assert.Empty(t, items[0].ImageURL, "input slice is not mutated")
}

func TestEnrich_FillsEmptySummaryFromDescription(t *testing.T) {
	client := &fakeClient{pages: map[string]string{
		"https://example.com/a": articlePage("https://cdn.example.com/a.jpg", "from the page"),
	}}
	e := New(client, 1, 0, nil)

	out := e.Enrich(context.Background(), []domain.Item{{ID: "a", Link: "https://example.com/a"}})
	assert.Equal(t, "from the page", out[0].Summary)
}

func TestEnrich_SkipsItemsWithImages(t *testing.T) {
	client := &fakeClient{}
	e := New(client, 2, 0, nil)

	items := []domain.Item{
		{ID: "has-image", Link: "https://example.com/x", ImageURL: "https://cdn.example.com/x.jpg"},
		{ID: "no-link"},
	}
	out := e.Enrich(context.Background(), items)

	assert.Equal(t, items, out)
	assert.Empty(t, client.calls, "nothing to backfill means no fetches")
}

func TestEnrich_FailuresLeaveItemUntouched(t *testing.T) {
	client := &fakeClient{
		errs:   map[string]error{"https://example.com/down": errors.New("connection refused")},
		status: map[string]int{"https://example.com/gone": 404},
		pages: map[string]string{
			"https://example.com/gone": "irrelevant",
			"https://example.com/ok":   articlePage("https://cdn.example.com/ok.jpg", ""),
		},
	}
	e := New(client, 3, 0, nil)

	items := []domain.Item{
		{ID: "down", Link: "https://example.com/down"},
		{ID: "gone", Link: "https://example.com/gone"},
		{ID: "ok", Link: "https://example.com/ok"},
	}
	out := e.Enrich(context.Background(), items)

	require.Len(t, out, 3)
	assert.Empty(t, out[0].ImageURL)
	assert.Empty(t, out[1].ImageURL)
	assert.Equal(t, "https://cdn.example.com/ok.jpg", out[2].ImageURL)
}

func TestEnrich_CanceledContextReturnsEarly(t *testing.T) {
	client := &fakeClient{pages: map[string]string{
		"https://example.com/a": articlePage("https://cdn.example.com/a.jpg", ""),
	}}
	e := New(client, 1, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.Enrich(ctx, []domain.Item{{ID: "a", Link: "https://example.com/a"}})
	require.Len(t, out, 1)
	assert.Empty(t, out[0].ImageURL)
}
