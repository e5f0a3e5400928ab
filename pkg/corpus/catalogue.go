package corpus

import (
	_ "embed"
	"fmt"

	"luara/pkg/store"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yml
var catalogueYAML []byte

type catalogueFile struct {
	Content []struct {
		Category      string `yaml:"category"`
		Subcategory   string `yaml:"subcategory"`
		GenderContext string `yaml:"gender_context"`
		Intensity     int    `yaml:"intensity"`
		Text          string `yaml:"text"`
	} `yaml:"content"`
	Fallbacks []struct {
		GenderContext string `yaml:"gender_context"`
		Intensity     int    `yaml:"intensity"`
		Text          string `yaml:"text"`
	} `yaml:"fallbacks"`
	Situational []struct {
		Stage     string   `yaml:"stage"`
		Intensity int      `yaml:"intensity"`
		Lines     []string `yaml:"lines"`
	} `yaml:"situational"`
}

// Catalogue is the parsed in-code seed: the content rows plus the layered
// in-memory fallbacks that never live in the database.
type Catalogue struct {
	Items       []store.ContentItem
	fallbacks   map[fallbackKey]string
	situational map[situationalKey][]string
}

type fallbackKey struct {
	gender    string
	intensity int
}

type situationalKey struct {
	stage     string
	intensity int
}

// LoadCatalogue parses the embedded catalogue. It is called once at boot;
// a malformed catalogue is a build defect, so errors are fatal upstream.
func LoadCatalogue() (*Catalogue, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(catalogueYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}

	c := &Catalogue{
		fallbacks:   make(map[fallbackKey]string),
		situational: make(map[situationalKey][]string),
	}

	for _, item := range file.Content {
		c.Items = append(c.Items, store.ContentItem{
			Category:      item.Category,
			Subcategory:   item.Subcategory,
			GenderContext: item.GenderContext,
			Intensity:     item.Intensity,
			Text:          item.Text,
			IsActive:      true,
		})
	}

	for _, fb := range file.Fallbacks {
		c.fallbacks[fallbackKey{fb.GenderContext, fb.Intensity}] = fb.Text
	}

	for _, sit := range file.Situational {
		c.situational[situationalKey{sit.Stage, sit.Intensity}] = sit.Lines
	}

	return c, nil
}

// Fallback returns the canonical last-resort utterance for an intensity and
// gender preference. It walks down to the neutral register and then to
// intensity 1 rather than returning nothing.
func (c *Catalogue) Fallback(intensity int, gender string) string {
	if text, ok := c.fallbacks[fallbackKey{gender, intensity}]; ok {
		return text
	}
	if text, ok := c.fallbacks[fallbackKey{store.GenderNeutral, intensity}]; ok {
		return text
	}
	if text, ok := c.fallbacks[fallbackKey{store.GenderNeutral, 1}]; ok {
		return text
	}
	return "oi! estou aqui com você"
}

// SituationalLines returns the suffix pool for a relationship stage and
// intensity, or nil when the pool is empty.
func (c *Catalogue) SituationalLines(stage string, intensity int) []string {
	return c.situational[situationalKey{stage, intensity}]
}
