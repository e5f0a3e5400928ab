// Package corpus owns the categorised utterance table: seeding it from the
// embedded catalogue and drawing rows by (category, gender, intensity) key.
package corpus

import (
	"log"
	"math/rand"
	"time"

	"luara/pkg/store"
)

// Rand is the random source used for uniform draws. Tests inject a seeded
// source for determinism.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type Corpus struct {
	store     store.Store
	catalogue *Catalogue
	rng       Rand
}

func New(s store.Store, catalogue *Catalogue, rng Rand) *Corpus {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Corpus{store: s, catalogue: catalogue, rng: rng}
}

func (c *Corpus) Catalogue() *Catalogue {
	return c.catalogue
}

// Seed populates the content table from the catalogue, but only when the
// table is empty. Safe to call on every boot.
func (c *Corpus) Seed() error {
	count, err := c.store.CountContent()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	log.Printf("Seeding content corpus with %d items", len(c.catalogue.Items))
	return c.store.SeedContent(c.catalogue.Items)
}

// Draw selects one utterance for the key. The lookup order is: exact gender
// match, then the neutral register, then the canonical in-memory fallback.
// Within a bucket the choice is uniform. The second return value is false
// when the fallback catalogue was used (no stored row to count usage on).
func (c *Corpus) Draw(category, gender string, intensity int) (store.ContentItem, bool, error) {
	items, err := c.store.ListContent(category, gender, intensity)
	if err != nil {
		return store.ContentItem{}, false, err
	}
	if len(items) == 0 && gender != store.GenderNeutral {
		items, err = c.store.ListContent(category, store.GenderNeutral, intensity)
		if err != nil {
			return store.ContentItem{}, false, err
		}
	}

	if len(items) == 0 {
		return store.ContentItem{
			Category:      category,
			GenderContext: gender,
			Intensity:     intensity,
			Text:          c.catalogue.Fallback(intensity, gender),
		}, false, nil
	}

	return items[c.rng.Intn(len(items))], true, nil
}

// DrawSituational picks one line from the (stage, intensity) suffix pool,
// or "" when the pool is empty.
func (c *Corpus) DrawSituational(stage string, intensity int) string {
	lines := c.catalogue.SituationalLines(stage, intensity)
	if len(lines) == 0 {
		return ""
	}
	return lines[c.rng.Intn(len(lines))]
}
