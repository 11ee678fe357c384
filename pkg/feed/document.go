// Package feed implements the ingestion pipeline pieces: tolerant XML
// parsing into a generic document, entry normalization into the canonical
// item model, stable identity assignment, lead-image extraction, and
// relay-aware fetch URL resolution.
package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Document is a generic parsed XML tree. Element values are one of:
// string (text-only element), map[string]any (element with attributes or
// children), or []any (repeated element). Attribute keys carry the "@"
// prefix so they can never collide with child element names; mixed text
// lives under "#text".
type Document map[string]any

const (
	attrPrefix = "@"
	textKey    = "#text"
)

// Element names that always decode to a slice, even when the document holds
// exactly one of them. A single-entry feed must not collapse to a bare
// object.
var forcedSlices = map[string]struct{}{
	"item":  {},
	"entry": {},
}

// Conventional prefixes for the namespace URIs that matter to feed
// dialects. Atom and RSS 1.0 element names are folded into the default
// namespace so RSS, Atom and RDF documents converge on the same keys.
var nsPrefixes = map[string]string{
	"http://www.w3.org/2005/Atom":                 "",
	"http://purl.org/rss/1.0/":                    "",
	"http://purl.org/rss/1.0/modules/content/":    "content",
	"http://search.yahoo.com/mrss/":               "media",
	"http://purl.org/dc/elements/1.1/":            "dc",
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#": "rdf",
	"http://www.itunes.com/dtds/podcast-1.0.dtd":  "itunes",
}

// Parse decodes raw feed bytes into a generic Document. It returns
// ErrEmptyResponse for blank input and ErrMalformedDocument (wrapping the
// decoder error) for anything that is not well-formed XML.
func Parse(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyResponse
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	// Feeds declare all manner of charsets; decode them as-is rather than
	// refusing the document outright.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	doc := Document{}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			val, err := parseElement(dec, start)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
			}
			insertChild(doc, elementName(start.Name), val)
		}
	}

	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	return doc, nil
}

// parseElement consumes tokens up to the matching end element and returns
// the element's decoded value.
func parseElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	attrs := make(map[string]any)
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		attrs[attrPrefix+a.Name.Local] = strings.TrimSpace(a.Value)
	}

	children := make(map[string]any)
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			// EOF here means an unclosed element.
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			val, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			insertChild(children, elementName(t.Name), val)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			return assembleNode(attrs, children, strings.TrimSpace(text.String())), nil
		}
	}
}

// insertChild adds a decoded child value, promoting repeated names to a
// slice and honoring the forced-slice set.
func insertChild(m map[string]any, name string, val any) {
	existing, ok := m[name]
	if !ok {
		if _, forced := forcedSlices[name]; forced {
			m[name] = []any{val}
		} else {
			m[name] = val
		}
		return
	}

	if slice, isSlice := existing.([]any); isSlice {
		m[name] = append(slice, val)
		return
	}
	m[name] = []any{existing, val}
}

// assembleNode collapses a text-only element to its string; anything with
// attributes or children stays a map.
func assembleNode(attrs, children map[string]any, text string) any {
	if len(attrs) == 0 && len(children) == 0 {
		return text
	}

	node := make(map[string]any, len(attrs)+len(children)+1)
	for k, v := range attrs {
		node[k] = v
	}
	for k, v := range children {
		node[k] = v
	}
	if text != "" {
		node[textKey] = text
	}
	return node
}

// elementName maps an xml.Name to the document key. Known namespace URIs
// fold to their conventional prefix; an undeclared prefix passes through
// verbatim; unknown URIs drop to the bare local name.
func elementName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	if prefix, ok := nsPrefixes[n.Space]; ok {
		if prefix == "" {
			return n.Local
		}
		return prefix + ":" + n.Local
	}
	// encoding/xml leaves undeclared prefixes in Space as-is.
	if !strings.ContainsAny(n.Space, "/:") {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// stringValue resolves the representations a field may take across
// dialects: a plain string, an object's text node, or the first value of
// a repeated element.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t[textKey].(string); ok {
			return s
		}
	case []any:
		if len(t) > 0 {
			return stringValue(t[0])
		}
	}
	return ""
}

// asEntryMap returns v as an element map, unwrapping a repeated element to
// its first value.
func asEntryMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		if len(t) > 0 {
			return asEntryMap(t[0])
		}
	}
	return nil
}
