// Package responder builds adult-mode replies: it classifies the incoming
// message, draws a matching utterance from the corpus under the user's
// profile settings and personalises the result.
package responder

import (
	"errors"
	"log"
	"strings"

	"luara/pkg/agegate"
	"luara/pkg/corpus"
	"luara/pkg/profile"
	"luara/pkg/store"
)

// ErrNoAccess means the user has no active adult session; the surfaces
// route such messages to the normal chat path instead.
var ErrNoAccess = errors.New("adult mode not active")

// Reply is one selected response plus the metadata the surfaces log.
type Reply struct {
	Text       string
	Context    string
	Category   string
	Intensity  int
	FromCorpus bool
}

type Responder struct {
	gate       *agegate.Gate
	profiles   *profile.Manager
	corpus     *corpus.Corpus
	store      store.Store
	rng        corpus.Rand
	suffixProb float64
}

func New(gate *agegate.Gate, profiles *profile.Manager, c *corpus.Corpus, s store.Store, rng corpus.Rand, suffixProb float64) *Responder {
	return &Responder{
		gate:       gate,
		profiles:   profiles,
		corpus:     c,
		store:      s,
		rng:        rng,
		suffixProb: suffixProb,
	}
}

// Respond selects a reply for one incoming adult-mode message. Returns
// ErrNoAccess when the user holds no active session.
func (r *Responder) Respond(userID, text string) (Reply, error) {
	unlock := r.gate.Lock(userID)
	defer unlock()

	granted, err := r.gate.Granted(userID)
	if err != nil {
		return Reply{}, err
	}
	if !granted {
		return Reply{}, ErrNoAccess
	}

	p, err := r.profiles.Get(userID)
	if err != nil {
		return Reply{}, err
	}

	context := Classify(text)
	category := categoryFor(context)

	item, fromCorpus, err := r.corpus.Draw(category, p.GenderPreference, p.IntensityLevel)
	if err != nil {
		return Reply{}, err
	}
	if fromCorpus {
		if err := r.store.IncrementUsage(item.ID); err != nil {
			log.Printf("Error incrementing usage for content %s: %v", item.ID, err)
		}
	}

	reply := r.personalize(userID, item.Text)

	count, err := r.profiles.RecordInteraction(userID)
	if err != nil {
		return Reply{}, err
	}

	if r.rng.Float64() < r.suffixProb {
		stage := profile.DeriveStage(count)
		if line := r.corpus.DrawSituational(stage, p.IntensityLevel); line != "" {
			reply = reply + " " + line
		}
	}

	return Reply{
		Text:       reply,
		Context:    context,
		Category:   category,
		Intensity:  item.Intensity,
		FromCorpus: fromCorpus,
	}, nil
}

// personalize swaps the first "amor" endearment for the user's display name
// when one is known, preserving the capitalisation of the original.
func (r *Responder) personalize(userID, text string) string {
	name, err := r.store.GetDisplayName(userID)
	if err != nil || name == "" {
		return text
	}
	if idx := strings.Index(text, "amor"); idx >= 0 {
		return text[:idx] + name + text[idx+len("amor"):]
	}
	if idx := strings.Index(text, "Amor"); idx >= 0 {
		return text[:idx] + capitalize(name) + text[idx+len("Amor"):]
	}
	return text
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
