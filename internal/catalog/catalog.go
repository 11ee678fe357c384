// Package catalog loads the feed source registry from a YAML/JSON file:
// the configured sources plus the data-driven rule tables for relay
// routing and image extraction.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/pkg/feed"
)

// catalogFile represents the structure of the sources configuration file.
type catalogFile struct {
	Sources    []SourceConfig    `json:"sources" yaml:"sources"`
	Categories []CategoryConfig  `json:"categories" yaml:"categories"`
	Images     ImageConfig       `json:"images" yaml:"images"`
	RelayRules []RelayRuleConfig `json:"relay_rules" yaml:"relay_rules"`
}

// SourceConfig is a single feed entry in the catalog file.
type SourceConfig struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title" yaml:"title"`
	URL           string `json:"url" yaml:"url"`
	Category      string `json:"category" yaml:"category"`
	RelayRequired bool   `json:"relay_required" yaml:"relay_required"`
	Active        *bool  `json:"active" yaml:"active"`
}

// CategoryConfig pairs a category with its default placeholder image.
type CategoryConfig struct {
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image" yaml:"image"`
}

// ImageConfig holds per-source image extraction overrides.
type ImageConfig struct {
	Overrides map[string]ImageOverrideConfig `json:"overrides" yaml:"overrides"`
}

// ImageOverrideConfig declares one override; exactly one field may be set.
type ImageOverrideConfig struct {
	CategoryDefault bool   `json:"category_default" yaml:"category_default"`
	Category        string `json:"category" yaml:"category"`
	Pattern         string `json:"pattern" yaml:"pattern"`
}

// RelayRuleConfig overrides relay handling for one host suffix.
type RelayRuleConfig struct {
	Suffix   string `json:"suffix" yaml:"suffix"`
	Template string `json:"template" yaml:"template"`
}

// Catalog materializes the validated source registry.
type Catalog struct {
	mu        sync.RWMutex
	sources   []SourceConfig
	idx       map[string]SourceConfig
	images    feed.ImageRules
	hostRules []feed.HostRule
}

// Load reads and validates the catalog from a YAML/JSON file. Environment
// references in the file are expanded before decoding.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(raw)))

	file, err := parseCatalogFile(expanded, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("catalog file contains no sources")
	}

	cat := &Catalog{
		sources: make([]SourceConfig, len(file.Sources)),
		idx:     make(map[string]SourceConfig, len(file.Sources)),
	}

	for i := range file.Sources {
		cfg := sanitizeSource(file.Sources[i])
		if err := validateSource(cfg); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, exists := cat.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", cfg.ID)
		}
		cat.sources[i] = cfg
		cat.idx[cfg.ID] = cfg
	}

	images, err := buildImageRules(file)
	if err != nil {
		return nil, err
	}
	cat.images = images
	cat.hostRules = buildHostRules(file.RelayRules)

	return cat, nil
}

// parseCatalogFile attempts to decode the catalog file content.
func parseCatalogFile(data []byte, ext string) (catalogFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yamlUnmarshal},
		{name: "yaml", ext: ".yml", fn: yamlUnmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file catalogFile
		if err := d.fn(data, &file); err != nil {
			return catalogFile{}, fmt.Errorf("decode %s catalog: %w", d.name, err)
		}
		return file, nil
	}

	return catalogFile{}, errors.New("catalog file format not recognized (expected YAML or JSON)")
}

func yamlUnmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// sanitizeSource trims and normalizes one source entry.
func sanitizeSource(cfg SourceConfig) SourceConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Title = strings.TrimSpace(cfg.Title)
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Category = strings.TrimSpace(cfg.Category)
	if cfg.Active == nil {
		def := true
		cfg.Active = &def
	}
	return cfg
}

// validateSource checks that required fields are present.
func validateSource(cfg SourceConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.URL == "" {
		return fmt.Errorf("url is required for source %q", cfg.ID)
	}
	if cfg.Category == "" {
		return fmt.Errorf("category is required for source %q", cfg.ID)
	}
	return nil
}

// buildImageRules compiles the file's image tables into extractor rules.
func buildImageRules(file catalogFile) (feed.ImageRules, error) {
	rules := feed.ImageRules{
		CategoryDefaults: make(map[string]string, len(file.Categories)),
	}

	for _, cat := range file.Categories {
		name := strings.TrimSpace(cat.Name)
		image := strings.TrimSpace(cat.Image)
		if name == "" || image == "" {
			continue
		}
		rules.CategoryDefaults[name] = image
	}

	if len(file.Images.Overrides) > 0 {
		rules.Overrides = make(map[string]feed.OverrideRule, len(file.Images.Overrides))
	}
	for sourceID, o := range file.Images.Overrides {
		sourceID = strings.TrimSpace(sourceID)
		if sourceID == "" {
			continue
		}

		rule := feed.OverrideRule{
			UseCategoryDefault: o.CategoryDefault,
			Category:           strings.TrimSpace(o.Category),
		}
		if p := strings.TrimSpace(o.Pattern); p != "" {
			compiled, err := regexp.Compile(p)
			if err != nil {
				return feed.ImageRules{}, fmt.Errorf("image override for %q: bad pattern: %w", sourceID, err)
			}
			rule.Pattern = compiled
		}
		rules.Overrides[sourceID] = rule
	}

	return rules, nil
}

// buildHostRules converts relay rule entries, dropping blanks.
func buildHostRules(entries []RelayRuleConfig) []feed.HostRule {
	out := make([]feed.HostRule, 0, len(entries))
	for _, e := range entries {
		suffix := strings.TrimSpace(e.Suffix)
		if suffix == "" {
			continue
		}
		out = append(out, feed.HostRule{
			Suffix:   suffix,
			Template: strings.TrimSpace(e.Template),
		})
	}
	return out
}

// Sources returns all catalog sources as domain records, in file order.
func (c *Catalog) Sources() []domain.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Source, len(c.sources))
	for i, cfg := range c.sources {
		out[i] = domain.Source{
			ID:            cfg.ID,
			Title:         cfg.Title,
			URL:           cfg.URL,
			Category:      cfg.Category,
			RelayRequired: cfg.RelayRequired,
		}
	}
	return out
}

// ActiveIDs returns the ids of sources not explicitly deactivated.
func (c *Catalog) ActiveIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.sources))
	for _, cfg := range c.sources {
		if cfg.Active == nil || *cfg.Active {
			out = append(out, cfg.ID)
		}
	}
	return out
}

// ByID returns the source with the given id.
func (c *Catalog) ByID(id string) (domain.Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, ok := c.idx[strings.TrimSpace(id)]
	if !ok {
		return domain.Source{}, false
	}
	return domain.Source{
		ID:            cfg.ID,
		Title:         cfg.Title,
		URL:           cfg.URL,
		Category:      cfg.Category,
		RelayRequired: cfg.RelayRequired,
	}, true
}

// ImageRules returns the compiled image extraction rule tables.
func (c *Catalog) ImageRules() feed.ImageRules {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.images
}

// HostRules returns the relay host rule table, in file order.
func (c *Catalog) HostRules() []feed.HostRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]feed.HostRule, len(c.hostRules))
	copy(out, c.hostRules)
	return out
}
