package feed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyInput(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("   \n\t  ")} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse([]byte(`<rss><channel><item></channel>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = Parse([]byte(`not xml at all`))
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestParse_MalformedIsNotEmpty(t *testing.T) {
	_, err := Parse([]byte(`<broken`))
	assert.ErrorIs(t, err, ErrMalformedDocument)
	assert.False(t, errors.Is(err, ErrEmptyResponse))
}

func TestParse_SingleItemStaysSlice(t *testing.T) {
	doc, err := Parse([]byte(`<rss version="2.0"><channel><item><title>only</title></item></channel></rss>`))
	require.NoError(t, err)

	rss, ok := doc["rss"].(map[string]any)
	require.True(t, ok)
	channel, ok := rss["channel"].(map[string]any)
	require.True(t, ok)

	items, ok := channel["item"].([]any)
	require.True(t, ok, "single item element must decode to a slice")
	require.Len(t, items, 1)

	entry, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "only", entry["title"])
}

func TestParse_AttributesDoNotCollideWithChildren(t *testing.T) {
	doc, err := Parse([]byte(`<root><node title="attr-value"><title>child-value</title></node></root>`))
	require.NoError(t, err)

	root := doc["root"].(map[string]any)
	node := root["node"].(map[string]any)

	assert.Equal(t, "attr-value", node["@title"])
	assert.Equal(t, "child-value", node["title"])
}

func TestParse_TextOnlyElementIsString(t *testing.T) {
	doc, err := Parse([]byte(`<root><plain>  hello world  </plain></root>`))
	require.NoError(t, err)

	root := doc["root"].(map[string]any)
	assert.Equal(t, "hello world", root["plain"])
}

func TestParse_MixedElementKeepsTextNode(t *testing.T) {
	doc, err := Parse([]byte(`<root><title type="html">Escaped &amp; Text</title></root>`))
	require.NoError(t, err)

	root := doc["root"].(map[string]any)
	title := root["title"].(map[string]any)
	assert.Equal(t, "html", title["@type"])
	assert.Equal(t, "Escaped & Text", title["#text"])
}

func TestParse_RepeatedElementsBecomeSlice(t *testing.T) {
	doc, err := Parse([]byte(`<root><link>a</link><link>b</link></root>`))
	require.NoError(t, err)

	root := doc["root"].(map[string]any)
	links, ok := root["link"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, links)
}

func TestParse_AtomNamespaceFolds(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry><title>one</title></entry>
</feed>`)

	doc, err := Parse(raw)
	require.NoError(t, err)

	atom, ok := doc["feed"].(map[string]any)
	require.True(t, ok, "atom default namespace must fold away")
	assert.Equal(t, "Atom Feed", atom["title"])

	entries, ok := atom["entry"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 1)
}

func TestParse_ContentEncodedKeepsPrefix(t *testing.T) {
	raw := []byte(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel><item><content:encoded>&lt;p&gt;body&lt;/p&gt;</content:encoded></item></channel></rss>`)

	doc, err := Parse(raw)
	require.NoError(t, err)

	rss := doc["rss"].(map[string]any)
	channel := rss["channel"].(map[string]any)
	entry := channel["item"].([]any)[0].(map[string]any)
	assert.Equal(t, "<p>body</p>", entry["content:encoded"])
}

func TestParse_UndeclaredPrefixPassesThrough(t *testing.T) {
	// Sloppy feeds use media: without declaring the namespace.
	raw := []byte(`<rss><channel><item><media:thumbnail url="http://x/y.png"/></item></channel></rss>`)

	doc, err := Parse(raw)
	require.NoError(t, err)

	rss := doc["rss"].(map[string]any)
	channel := rss["channel"].(map[string]any)
	entry := channel["item"].([]any)[0].(map[string]any)

	thumb, ok := entry["media:thumbnail"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "http://x/y.png", thumb["@url"])
}

func TestParse_RDFDocument(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
  <channel><title>RDF Feed</title></channel>
  <item><title>first</title></item>
  <item><title>second</title></item>
</rdf:RDF>`)

	doc, err := Parse(raw)
	require.NoError(t, err)

	rdf, ok := doc["rdf:RDF"].(map[string]any)
	require.True(t, ok)

	items, ok := rdf["item"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestStringValue_Representations(t *testing.T) {
	assert.Equal(t, "plain", stringValue("plain"))
	assert.Equal(t, "text-node", stringValue(map[string]any{"#text": "text-node"}))
	assert.Equal(t, "first", stringValue([]any{"first", "second"}))
	assert.Equal(t, "nested", stringValue([]any{map[string]any{"#text": "nested"}}))
	assert.Equal(t, "", stringValue(nil))
	assert.Equal(t, "", stringValue(map[string]any{"other": 1}))
}
