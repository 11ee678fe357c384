package feed

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const titleIDLen = 30

var (
	idInvalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	idDashRuns     = regexp.MustCompile(`-+`)
)

// AssignID derives the stable de-duplication key for an entry from its
// category, title prefix, link suffix and resolved publication time. The
// same upstream entry yields the same id on every refresh. Entries that
// differ only in body content collide; the key is not a content hash.
func AssignID(category, title, link string, publishedAt time.Time) string {
	var b strings.Builder
	b.WriteString(category)

	if title != "" {
		b.WriteByte('-')
		runes := []rune(title)
		if len(runes) > titleIDLen {
			runes = runes[:titleIDLen]
		}
		b.WriteString(string(runes))
	}

	if link != "" {
		parts := strings.Split(link, "/")
		b.WriteByte('-')
		b.WriteString(parts[len(parts)-1])
	}

	fmt.Fprintf(&b, "-%d", publishedAt.UnixMilli())

	id := strings.ToLower(b.String())
	id = idInvalidChars.ReplaceAllString(id, "-")
	id = idDashRuns.ReplaceAllString(id, "-")
	return strings.Trim(id, "-")
}
