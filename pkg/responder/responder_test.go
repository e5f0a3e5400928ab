package responder

import (
	"testing"
	"time"

	"luara/pkg/agegate"
	"luara/pkg/corpus"
	"luara/pkg/profile"
	"luara/pkg/store"
	"luara/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand returns scripted values so suffix rolls and draws are
// deterministic in tests.
type fixedRand struct {
	intn    int
	float64 float64
}

func (f *fixedRand) Intn(n int) int {
	if f.intn >= n {
		return n - 1
	}
	return f.intn
}

func (f *fixedRand) Float64() float64 { return f.float64 }

func testResponder(t *testing.T, rng corpus.Rand, suffixProb float64) (*Responder, *agegate.Gate, *store.MemStore) {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	ms := store.NewMemStore()
	tokens := token.NewService(token.WithClock(clock))
	profiles := profile.NewManager(ms, clock)
	gate := agegate.New(ms, tokens, profiles, agegate.Options{Clock: clock})

	catalogue, err := corpus.LoadCatalogue()
	require.NoError(t, err)
	c := corpus.New(ms, catalogue, rng)
	require.NoError(t, c.Seed())

	return New(gate, profiles, c, ms, rng, suffixProb), gate, ms
}

func grantUser(t *testing.T, gate *agegate.Gate, userID string) {
	t.Helper()
	res, err := gate.RequestActivation(userID, "test", "")
	require.NoError(t, err)
	verificationToken := res.Token
	res, err = gate.SubmitTerms(userID, verificationToken, "ACEITO18", "test", "")
	require.NoError(t, err)
	res, err = gate.SubmitAge(userID, verificationToken, agegate.QuestionBirthYear, "1995", "test", "")
	require.NoError(t, err)
	require.Equal(t, agegate.StatusAccessGranted, res.Status)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"oi, tudo bem?", ContextGreeting},
		{"bom dia!", ContextGreeting},
		{"você é muito linda", ContextFlirt},
		{"quero você na cama", ContextSexual},
		{"duvido que você responda", ContextProvocation},
		{"estou com saudade", ContextAffectionate},
		{"te amo demais", ContextAffectionate},
		{"qual sua cor favorita", ContextGeneral},
		{"", ContextGeneral},
		{"   ", ContextGeneral},
		// Greeting outranks flirt when both match
		{"oi linda", ContextGreeting},
		// "foi" must not match the "oi" keyword
		{"foi muito bom", ContextGeneral},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.text), "text=%q", tc.text)
	}
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, "greetings", categoryFor(ContextGreeting))
	assert.Equal(t, "flirts", categoryFor(ContextFlirt))
	assert.Equal(t, "flirts", categoryFor(ContextAffectionate))
	assert.Equal(t, "provocations", categoryFor(ContextSexual))
	assert.Equal(t, "provocations", categoryFor(ContextProvocation))
	assert.Equal(t, "general_chat", categoryFor(ContextGeneral))
}

func TestRespond_RequiresActiveSession(t *testing.T) {
	r, _, _ := testResponder(t, &fixedRand{}, 0)

	_, err := r.Respond("U1", "oi")
	assert.ErrorIs(t, err, ErrNoAccess)
}

func TestRespond_DrawsFromMatchingCategory(t *testing.T) {
	r, gate, ms := testResponder(t, &fixedRand{float64: 1}, 0.3)
	grantUser(t, gate, "U1")

	reply, err := r.Respond("U1", "oi, tudo bem?")
	require.NoError(t, err)
	assert.Equal(t, ContextGreeting, reply.Context)
	assert.Equal(t, "greetings", reply.Category)
	assert.True(t, reply.FromCorpus)
	assert.NotEmpty(t, reply.Text)
	assert.LessOrEqual(t, reply.Intensity, 2) // default intensity

	// The interaction counter moved
	p, err := ms.GetProfile("U1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.InteractionCount)
}

func TestRespond_IncrementsUsageOnCorpusRows(t *testing.T) {
	r, gate, ms := testResponder(t, &fixedRand{float64: 1}, 0.3)
	grantUser(t, gate, "U1")

	reply, err := r.Respond("U1", "oi")
	require.NoError(t, err)
	require.True(t, reply.FromCorpus)

	total := 0
	items, err := ms.ListContent("greetings", store.GenderFeminine, 3)
	require.NoError(t, err)
	for _, item := range items {
		total += item.UsageCount
	}
	items, err = ms.ListContent("greetings", store.GenderNeutral, 3)
	require.NoError(t, err)
	for _, item := range items {
		total += item.UsageCount
	}
	assert.Equal(t, 1, total)
}

func TestPersonalize(t *testing.T) {
	r, _, ms := testResponder(t, &fixedRand{float64: 1}, 0.3)
	require.NoError(t, ms.SetDisplayName("U1", "carol"))

	// First occurrence swapped, capitalisation preserved
	assert.Equal(t, "oi carol, tudo bem?", r.personalize("U1", "oi amor, tudo bem?"))
	assert.Equal(t, "Carol, senti sua falta", r.personalize("U1", "Amor, senti sua falta"))

	// Only the first occurrence changes
	assert.Equal(t, "carol, meu amor", r.personalize("U1", "amor, meu amor"))

	// No endearment, no change
	assert.Equal(t, "tudo bem?", r.personalize("U1", "tudo bem?"))

	// No known name keeps the endearment
	assert.Equal(t, "oi amor", r.personalize("U2", "oi amor"))
}

func TestRespond_SituationalSuffix(t *testing.T) {
	// Roll of 0.0 always lands under the 0.3 threshold
	withSuffix, gate, _ := testResponder(t, &fixedRand{float64: 0}, 0.3)
	grantUser(t, gate, "U1")
	long, err := withSuffix.Respond("U1", "oi")
	require.NoError(t, err)

	// Roll of 1.0 never does
	without, gate2, _ := testResponder(t, &fixedRand{float64: 1}, 0.3)
	grantUser(t, gate2, "U1")
	short, err := without.Respond("U1", "oi")
	require.NoError(t, err)

	// Same seed, so the base draw matches and only the suffix differs
	assert.Greater(t, len(long.Text), len(short.Text))
}

func TestRespond_CrossesStageBoundary(t *testing.T) {
	r, gate, ms := testResponder(t, &fixedRand{float64: 1}, 0.3)
	grantUser(t, gate, "U1")

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		_, err := ms.IncrementInteraction("U1", now)
		require.NoError(t, err)
	}

	info, err := gate.Status("U1")
	require.NoError(t, err)
	require.Equal(t, store.StageInitial, info.Stage)

	_, err = r.Respond("U1", "oi")
	require.NoError(t, err)

	p, err := ms.GetProfile("U1")
	require.NoError(t, err)
	assert.Equal(t, 21, p.InteractionCount)

	info, err = gate.Status("U1")
	require.NoError(t, err)
	assert.Equal(t, store.StageDeveloping, info.Stage)
}

func TestRespond_StoreFailurePropagates(t *testing.T) {
	r, gate, ms := testResponder(t, &fixedRand{float64: 1}, 0.3)
	grantUser(t, gate, "U1")

	ms.FailAll = true
	_, err := r.Respond("U1", "oi")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}
