// Package profile manages the per-user adult profile: intensity tier,
// gender preference and the interaction counter the relationship stage is
// derived from.
package profile

import (
	"errors"
	"time"

	"luara/pkg/store"
)

var (
	ErrInvalidLevel  = errors.New("intensity level out of range")
	ErrInvalidGender = errors.New("gender preference not recognised")
)

// Stage boundaries over the interaction counter.
const (
	developingThreshold = 20
	intimateThreshold   = 50
)

// DeriveStage maps an interaction count to a relationship stage. The stage
// is never stored; it is recomputed on every read.
func DeriveStage(interactionCount int) string {
	switch {
	case interactionCount <= developingThreshold:
		return store.StageInitial
	case interactionCount <= intimateThreshold:
		return store.StageDeveloping
	default:
		return store.StageIntimate
	}
}

func ValidIntensity(level int) bool {
	return level >= 1 && level <= 3
}

func ValidGender(pref string) bool {
	switch pref {
	case store.GenderFeminine, store.GenderMasculine, store.GenderNeutral:
		return true
	}
	return false
}

type Manager struct {
	store store.Store
	now   func() time.Time
}

func NewManager(s store.Store, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: s, now: now}
}

// Get reads the profile, substituting defaults when no row exists yet. The
// row itself is only materialised by the first write.
func (m *Manager) Get(userID string) (*store.AdultProfile, error) {
	p, err := m.store.GetProfile(userID)
	if errors.Is(err, store.ErrNotFound) {
		return &store.AdultProfile{
			UserID:           userID,
			IntensityLevel:   2,
			GenderPreference: store.GenderFeminine,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Stage returns the derived relationship stage for a user.
func (m *Manager) Stage(userID string) (string, error) {
	p, err := m.Get(userID)
	if err != nil {
		return "", err
	}
	return DeriveStage(p.InteractionCount), nil
}

// SetIntensity validates and persists a new intensity level. Out-of-range
// values are rejected, never clamped.
func (m *Manager) SetIntensity(userID string, level int) error {
	if !ValidIntensity(level) {
		return ErrInvalidLevel
	}
	return m.store.UpsertProfile(userID, store.ProfileUpdate{IntensityLevel: &level}, m.now())
}

// SetGender validates and persists a new gender preference.
func (m *Manager) SetGender(userID, pref string) error {
	if !ValidGender(pref) {
		return ErrInvalidGender
	}
	return m.store.UpsertProfile(userID, store.ProfileUpdate{GenderPreference: &pref}, m.now())
}

// RecordInteraction bumps the interaction counter and returns the new value.
func (m *Manager) RecordInteraction(userID string) (int, error) {
	return m.store.IncrementInteraction(userID, m.now())
}
