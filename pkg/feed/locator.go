package feed

import (
	"net/url"
	"strings"

	"github.com/lumenlabs/feedstream/internal/domain"
)

// Template placeholders understood by relay rules. {url} substitutes the
// query-escaped feed URL, {raw} the unescaped one.
const (
	placeholderEscaped = "{url}"
	placeholderRaw     = "{raw}"
)

// HostRule overrides relay handling for one host (and its subdomains). An
// empty Template means the host is fetched directly regardless of the
// source's relay flag.
type HostRule struct {
	Suffix   string
	Template string
}

// Resolver decides the fetch URL for a source: host rules first, then the
// default relay template for relay-flagged sources, otherwise the feed URL
// unchanged. Pure, no I/O; new exceptions are added to the rule table.
type Resolver struct {
	defaultTemplate string
	rules           []HostRule
}

// NewResolver builds a Resolver with a default relay template and an
// ordered host rule table.
func NewResolver(defaultTemplate string, rules []HostRule) *Resolver {
	return &Resolver{defaultTemplate: defaultTemplate, rules: rules}
}

// ResolveFetchURL returns the URL the aggregator should actually fetch for
// the source.
func (r *Resolver) ResolveFetchURL(src domain.Source) string {
	host := hostOf(src.URL)

	for _, rule := range r.rules {
		if rule.Suffix == "" || !hostMatches(host, rule.Suffix) {
			continue
		}
		if rule.Template == "" {
			return src.URL
		}
		return applyTemplate(rule.Template, src.URL)
	}

	if src.RelayRequired && r.defaultTemplate != "" {
		return applyTemplate(r.defaultTemplate, src.URL)
	}
	return src.URL
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func hostMatches(host, suffix string) bool {
	suffix = strings.ToLower(suffix)
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

func applyTemplate(tpl, feedURL string) string {
	out := strings.ReplaceAll(tpl, placeholderEscaped, url.QueryEscape(feedURL))
	return strings.ReplaceAll(out, placeholderRaw, feedURL)
}
