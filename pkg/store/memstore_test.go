package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession_SupersedesPrevious(t *testing.T) {
	m := NewMemStore()
	now := time.Now()

	require.NoError(t, m.CreateSession(AdultSession{
		UserID: "u1", SessionToken: "s1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, m.CreateSession(AdultSession{
		UserID: "u1", SessionToken: "s2", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	active, err := m.GetActiveSession("u1")
	require.NoError(t, err)
	assert.Equal(t, "s2", active.SessionToken)

	// Exactly one active row, prior one marked superseded
	activeCount := 0
	for _, s := range m.Sessions() {
		if s.IsActive {
			activeCount++
		} else {
			assert.Equal(t, ReasonSuperseded, s.DeactivationReason)
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestDeactivateExpiredSessions(t *testing.T) {
	m := NewMemStore()
	now := time.Now()

	require.NoError(t, m.CreateSession(AdultSession{
		UserID: "u1", SessionToken: "old", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, m.CreateSession(AdultSession{
		UserID: "u2", SessionToken: "fresh", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	n, err := m.DeactivateExpiredSessions(now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.GetActiveSession("u1")
	assert.ErrorIs(t, err, ErrNotFound)

	fresh, err := m.GetActiveSession("u2")
	require.NoError(t, err)
	assert.True(t, fresh.IsActive)
}

func TestIncrementInteraction_CreatesProfileWithDefaults(t *testing.T) {
	m := NewMemStore()
	now := time.Now()

	count, err := m.IncrementInteraction("u1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	p, err := m.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.IntensityLevel)
	assert.Equal(t, GenderFeminine, p.GenderPreference)
	assert.Equal(t, now, p.LastInteraction)
}

func TestUpsertProfile_PartialUpdate(t *testing.T) {
	m := NewMemStore()
	now := time.Now()

	level := 3
	require.NoError(t, m.UpsertProfile("u1", ProfileUpdate{IntensityLevel: &level}, now))

	p, err := m.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.IntensityLevel)
	// Unsupplied field keeps its default
	assert.Equal(t, GenderFeminine, p.GenderPreference)

	gender := GenderMasculine
	require.NoError(t, m.UpsertProfile("u1", ProfileUpdate{GenderPreference: &gender}, now.Add(time.Minute)))

	p, err = m.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.IntensityLevel)
	assert.Equal(t, GenderMasculine, p.GenderPreference)
	assert.Equal(t, now.Add(time.Minute), p.UpdatedAt)
}

func TestListContent_FiltersByKey(t *testing.T) {
	m := NewMemStore()
	require.NoError(t, m.SeedContent([]ContentItem{
		{Category: "greetings", GenderContext: GenderFeminine, Intensity: 1, Text: "a"},
		{Category: "greetings", GenderContext: GenderFeminine, Intensity: 3, Text: "b"},
		{Category: "greetings", GenderContext: GenderNeutral, Intensity: 1, Text: "c"},
		{Category: "flirts", GenderContext: GenderFeminine, Intensity: 1, Text: "d"},
	}))

	items, err := m.ListContent("greetings", GenderFeminine, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Text)
}

func TestIncrementUsage(t *testing.T) {
	m := NewMemStore()
	require.NoError(t, m.SeedContent([]ContentItem{
		{Category: "greetings", GenderContext: GenderNeutral, Intensity: 1, Text: "a"},
	}))

	items, err := m.ListContent("greetings", GenderNeutral, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, m.IncrementUsage(items[0].ID))
	require.NoError(t, m.IncrementUsage(items[0].ID))

	item, ok := m.ContentByID(items[0].ID)
	require.True(t, ok)
	assert.Equal(t, 2, item.UsageCount)
}

func TestFailAll_SurfacesStoreUnavailable(t *testing.T) {
	m := NewMemStore()
	m.FailAll = true

	_, err := m.GetActiveSession("u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = m.CreateAttempt(VerificationAttempt{UserID: "u1"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestAddRecentMessage_CapsAtFifteen(t *testing.T) {
	m := NewMemStore()
	for i := 0; i < 20; i++ {
		require.NoError(t, m.AddRecentMessage("u1", "user", "msg"))
	}
	msgs, err := m.GetRecentMessages("u1")
	require.NoError(t, err)
	assert.Len(t, msgs, 15)
}
