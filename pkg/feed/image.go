package feed

import "regexp"

// OverrideRule short-circuits image extraction for one feed. Exactly one
// field should be set.
type OverrideRule struct {
	// UseCategoryDefault returns the default image of the item's own
	// category immediately.
	UseCategoryDefault bool
	// Category returns the default image of a specific category, for feeds
	// that never carry usable images of their own.
	Category string
	// Pattern returns the first match of the expression in the content, or
	// no image when it does not match.
	Pattern *regexp.Regexp
}

// ImageRules configures the extractor: per-source overrides tried first,
// then per-category placeholder defaults as the last resort.
type ImageRules struct {
	Overrides        map[string]OverrideRule
	CategoryDefaults map[string]string
}

// Generic extraction attempts, in priority order. Entries with a capture
// group return the group; the bare-URL entry returns the whole match.
var imageAttempts = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<img[^>]+src="([^">]+)"`),
	regexp.MustCompile(`(?i)<media:content[^>]+url="([^">]+)"`),
	regexp.MustCompile(`(?i)<media:thumbnail[^>]+url="([^">]+)"`),
	regexp.MustCompile(`(?i)<enclosure[^>]+url="([^">]+)"[^>]+type="image`),
	regexp.MustCompile(`(?i)<meta[^>]+property="og:image"[^>]+content="([^">]+)"`),
	regexp.MustCompile(`(?i)https?://[^"\s]+\.(?:jpg|jpeg|png|gif|webp)`),
	regexp.MustCompile(`(?is)<figure[^>]*>.*?<img[^>]+src="([^">]+)"`),
}

// Extractor heuristically locates a representative image for an item. It
// is best-effort and never fails; an empty string means no image.
type Extractor struct {
	rules ImageRules
}

// NewExtractor builds an Extractor with the given rule tables.
func NewExtractor(rules ImageRules) *Extractor {
	return &Extractor{rules: rules}
}

// Extract returns a plausible image URL for the content, or "".
func (e *Extractor) Extract(content, sourceID, category string) string {
	if content == "" {
		return e.categoryDefault(category)
	}

	if rule, ok := e.rules.Overrides[sourceID]; ok {
		switch {
		case rule.UseCategoryDefault:
			return e.categoryDefault(category)
		case rule.Category != "":
			return e.categoryDefault(rule.Category)
		case rule.Pattern != nil:
			return rule.Pattern.FindString(content)
		}
	}

	for _, attempt := range imageAttempts {
		m := attempt.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		if attempt.NumSubexp() > 0 {
			if m[1] != "" {
				return m[1]
			}
			continue
		}
		return m[0]
	}

	return e.categoryDefault(category)
}

func (e *Extractor) categoryDefault(category string) string {
	return e.rules.CategoryDefaults[category]
}
