package feed

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/lumenlabs/feedstream/internal/domain"
)

const (
	summaryMaxRunes = 300
	ellipsisMarker  = "..."
	untitledTitle   = "Untitled"
)

// Publication timestamp layouts observed across feed dialects, in the
// order they are attempted.
var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	markupTags     = regexp.MustCompile(`<[^>]*>`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	entityDecoder  = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
)

// Normalizer maps generic feed documents onto the canonical item model.
type Normalizer struct {
	images *Extractor
	now    func() time.Time
}

// NewNormalizer builds a Normalizer using the given image extractor. A nil
// clock defaults to time.Now; tests inject a fixed one.
func NewNormalizer(images *Extractor, now func() time.Time) *Normalizer {
	if images == nil {
		images = NewExtractor(ImageRules{})
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{images: images, now: now}
}

// Normalize converts one source's parsed document into canonical items.
// An empty feed yields zero items without error; a document with no
// recognizable channel shape fails with ErrUnrecognizedShape.
func (n *Normalizer) Normalize(doc Document, src domain.Source) ([]domain.Item, error) {
	entries, err := feedEntries(doc)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", src.ID, err)
	}

	items := make([]domain.Item, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, n.normalizeEntry(entry, src))
	}
	return items, nil
}

// feedEntries locates the entry list by trying the RSS channel, the Atom
// feed, the RDF document and finally the raw root, in that order. A
// recognized channel with no entries is a valid empty feed.
func feedEntries(doc Document) ([]any, error) {
	if rss, ok := doc["rss"].(map[string]any); ok {
		if ch, present := rss["channel"]; present {
			return entryList(asEntryMap(ch)), nil
		}
	}
	if ch, present := doc["feed"]; present {
		return entryList(asEntryMap(ch)), nil
	}
	if ch, present := doc["rdf:RDF"]; present {
		return entryList(asEntryMap(ch)), nil
	}

	// Last resort: entries sitting directly under the document root.
	if entries := entryList(doc); entries != nil {
		return entries, nil
	}
	return nil, ErrUnrecognizedShape
}

// entryList returns the container's entries: RSS items first, Atom entries
// second. Missing containers return nil.
func entryList(container map[string]any) []any {
	if items, ok := container["item"].([]any); ok {
		return items
	}
	if entries, ok := container["entry"].([]any); ok {
		return entries
	}
	return nil
}

// normalizeEntry resolves one entry's fields through their fallback chains
// and completes the item with identity and image assignment.
func (n *Normalizer) normalizeEntry(entry map[string]any, src domain.Source) domain.Item {
	title := strings.TrimSpace(stringValue(entry["title"]))
	link := entryLink(entry["link"])
	content := entryContent(entry, title)
	publishedAt, synthesized := n.entryPublished(entry)

	imageURL := n.images.Extract(content, src.ID, src.Category)
	fullContent := content
	if imageURL != "" {
		alt := title
		if alt == "" {
			alt = "Article image"
		}
		fullContent = fmt.Sprintf(`<img src=%q alt=%q />%s`, imageURL, alt, content)
	}

	item := domain.Item{
		ID:              AssignID(src.Category, title, link, publishedAt),
		Title:           title,
		Link:            resolveLink(link, src.URL),
		Summary:         summarize(fullContent),
		FullContent:     fullContent,
		ImageURL:        imageURL,
		PublishedAt:     publishedAt,
		DateSynthesized: synthesized,
		Category:        src.Category,
		SourceID:        src.ID,
	}
	if item.Title == "" {
		item.Title = untitledTitle
	}
	return item
}

// entryLink handles the link representations the dialects produce: an Atom
// href attribute, a plain string, a text node, or the first of a repeated
// element.
func entryLink(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if href, ok := t[attrPrefix+"href"].(string); ok && href != "" {
			return href
		}
		if text, ok := t[textKey].(string); ok {
			return strings.TrimSpace(text)
		}
	case []any:
		if len(t) > 0 {
			return entryLink(t[0])
		}
	}
	return ""
}

// entryContent resolves the content fallback chain; the title backstops so
// the result is never empty for a titled entry.
func entryContent(entry map[string]any, title string) string {
	for _, key := range []string{"content:encoded", "content", "description", "summary"} {
		if s := strings.TrimSpace(stringValue(entry[key])); s != "" {
			return s
		}
	}
	return title
}

// entryPublished resolves the publication timestamp chain. When every
// candidate is missing or unparseable the fetch time substitutes, flagged
// as synthesized.
func (n *Normalizer) entryPublished(entry map[string]any) (time.Time, bool) {
	for _, key := range []string{"pubDate", "published", "updated", "dc:date"} {
		raw := strings.TrimSpace(stringValue(entry[key]))
		if raw == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, false
			}
		}
	}
	return n.now(), true
}

// summarize strips markup and decodes the fixed entity set, collapses
// whitespace, and truncates to the summary length cap by rune count.
func summarize(content string) string {
	text := markupTags.ReplaceAllString(content, " ")
	text = entityDecoder.Replace(text)
	text = whitespaceRuns.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= summaryMaxRunes {
		return text
	}
	return string(runes[:summaryMaxRunes]) + ellipsisMarker
}

// resolveLink makes relative entry links absolute against the feed URL.
func resolveLink(link, feedURL string) string {
	if link == "" {
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	if parsed.IsAbs() {
		return parsed.String()
	}

	base, err := url.Parse(feedURL)
	if err != nil {
		return link
	}
	return base.ResolveReference(parsed).String()
}
