package feed

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumenlabs/feedstream/internal/domain"
)

const relayTemplate = "https://relay.example.com/get?url={url}"

func testResolver() *Resolver {
	return NewResolver(relayTemplate, []HostRule{
		{Suffix: "news.google.com"},
		{Suffix: "hnrss.org", Template: "https://alt-relay.example.com/raw?target={raw}"},
	})
}

func TestResolveFetchURL_DirectWhenNoRelayNeeded(t *testing.T) {
	r := testResolver()
	src := domain.Source{URL: "https://example.com/feed.xml"}

	assert.Equal(t, "https://example.com/feed.xml", r.ResolveFetchURL(src))
}

func TestResolveFetchURL_DefaultRelayEscapesURL(t *testing.T) {
	r := testResolver()
	src := domain.Source{URL: "https://example.com/feed.xml?a=1&b=2", RelayRequired: true}

	got := r.ResolveFetchURL(src)
	assert.Equal(t, "https://relay.example.com/get?url="+url.QueryEscape(src.URL), got)
	assert.NotContains(t, got, "&b=2", "feed query must be escaped into the relay parameter")
}

func TestResolveFetchURL_HostRuleForcesDirect(t *testing.T) {
	r := testResolver()
	src := domain.Source{URL: "https://news.google.com/rss?hl=en", RelayRequired: true}

	assert.Equal(t, src.URL, r.ResolveFetchURL(src), "exempt hosts bypass the relay even when flagged")
}

func TestResolveFetchURL_HostRuleMatchesSubdomains(t *testing.T) {
	r := testResolver()

	direct := domain.Source{URL: "https://feeds.news.google.com/rss", RelayRequired: true}
	assert.Equal(t, direct.URL, r.ResolveFetchURL(direct))

	lookalike := domain.Source{URL: "https://evilnews.google.com.attacker.example/rss", RelayRequired: true}
	got := r.ResolveFetchURL(lookalike)
	assert.NotEqual(t, lookalike.URL, got, "suffix match must be on dot boundaries")
}

func TestResolveFetchURL_HostRuleAlternateTemplate(t *testing.T) {
	r := testResolver()
	src := domain.Source{URL: "https://hnrss.org/frontpage", RelayRequired: true}

	assert.Equal(t, "https://alt-relay.example.com/raw?target=https://hnrss.org/frontpage", r.ResolveFetchURL(src))
}

func TestResolveFetchURL_NoTemplateConfigured(t *testing.T) {
	r := NewResolver("", nil)
	src := domain.Source{URL: "https://example.com/feed.xml", RelayRequired: true}

	assert.Equal(t, src.URL, r.ResolveFetchURL(src), "without a relay template the flag is a no-op")
}
