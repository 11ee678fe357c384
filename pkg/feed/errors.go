package feed

import "errors"

// Per-source failure taxonomy. Every error here is recovered locally by the
// aggregator: the source contributes zero items for the cycle and the error
// is logged, nothing more.
var (
	// ErrEmptyResponse marks an empty or whitespace-only feed body. Kept
	// distinct from a parse failure because it usually means a
	// misconfigured relay rather than a broken feed.
	ErrEmptyResponse = errors.New("empty feed body")

	// ErrMalformedDocument marks a byte stream that is not well-formed XML.
	ErrMalformedDocument = errors.New("malformed feed document")

	// ErrUnrecognizedShape marks well-formed XML with no recognizable
	// RSS/Atom/RDF channel or entry container.
	ErrUnrecognizedShape = errors.New("unrecognized feed shape")
)
