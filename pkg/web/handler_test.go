package web

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http/httptest"
	"testing"
	"time"

	"luara/pkg/agegate"
	"luara/pkg/corpus"
	"luara/pkg/profile"
	"luara/pkg/responder"
	"luara/pkg/store"
	"luara/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) (*fiber.App, *store.MemStore) {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	ms := store.NewMemStore()
	ms.Now = clock
	tokens := token.NewService(token.WithClock(clock))
	profiles := profile.NewManager(ms, clock)
	gate := agegate.New(ms, tokens, profiles, agegate.Options{Clock: clock})

	catalogue, err := corpus.LoadCatalogue()
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	c := corpus.New(ms, catalogue, rng)
	require.NoError(t, c.Seed())

	r := responder.New(gate, profiles, c, ms, rng, 0.3)

	app := fiber.New()
	NewAdultHandler(gate, r).SetupRoutes(app)
	return app, ms
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	payload := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	return resp.StatusCode, payload
}

func TestFullFlowOverHTTP(t *testing.T) {
	app, _ := testApp(t)

	code, body := doJSON(t, app, "POST", "/adult/activate", fiber.Map{"user_id": "U1"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "terms_required", body["status"])
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)

	code, body = doJSON(t, app, "POST", "/adult/terms", fiber.Map{
		"user_id": "U1", "token": tok, "response": "ACEITO18",
	})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "age_verification", body["status"])

	code, body = doJSON(t, app, "POST", "/adult/verify_age", fiber.Map{
		"user_id": "U1", "token": tok, "birth_date": "1995-03-10",
	})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "access_granted", body["status"])
	assert.NotEmpty(t, body["session_token"])

	code, body = doJSON(t, app, "GET", "/adult/status/U1", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["active"])

	code, body = doJSON(t, app, "POST", "/adult/message", fiber.Map{
		"user_id": "U1", "text": "oi, tudo bem?",
	})
	require.Equal(t, fiber.StatusOK, code)
	assert.NotEmpty(t, body["text"])

	code, body = doJSON(t, app, "POST", "/adult/deactivate", fiber.Map{"user_id": "U1"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "deactivated", body["status"])
}

func TestUnderageBirthDateDenied(t *testing.T) {
	app, _ := testApp(t)

	_, body := doJSON(t, app, "POST", "/adult/activate", fiber.Map{"user_id": "U2"})
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)

	doJSON(t, app, "POST", "/adult/terms", fiber.Map{
		"user_id": "U2", "token": tok, "response": "ACEITO18",
	})

	code, body := doJSON(t, app, "POST", "/adult/verify_age", fiber.Map{
		"user_id": "U2", "token": tok, "birth_date": "2015-01-01",
	})
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.Equal(t, "access_denied", body["status"])

	// Cooldown answers with 429
	code, body = doJSON(t, app, "POST", "/adult/activate", fiber.Map{"user_id": "U2"})
	assert.Equal(t, fiber.StatusTooManyRequests, code)
	assert.Equal(t, "recent_attempt", body["status"])
}

func TestBadBirthDateFormat(t *testing.T) {
	app, _ := testApp(t)

	_, body := doJSON(t, app, "POST", "/adult/activate", fiber.Map{"user_id": "U3"})
	tok, _ := body["token"].(string)

	doJSON(t, app, "POST", "/adult/terms", fiber.Map{
		"user_id": "U3", "token": tok, "response": "ACEITO18",
	})

	code, resp := doJSON(t, app, "POST", "/adult/verify_age", fiber.Map{
		"user_id": "U3", "token": tok, "birth_date": "10/03/1995",
	})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "invalid_format", resp["status"])
}

func TestMessageWithoutAccess(t *testing.T) {
	app, _ := testApp(t)

	code, body := doJSON(t, app, "POST", "/adult/message", fiber.Map{
		"user_id": "U4", "text": "oi",
	})
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.Equal(t, "no_access", body["status"])
}

func TestMissingUserID(t *testing.T) {
	app, _ := testApp(t)

	code, _ := doJSON(t, app, "POST", "/adult/activate", fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestRevokeKeepsProfile(t *testing.T) {
	app, ms := testApp(t)

	_, body := doJSON(t, app, "POST", "/adult/activate", fiber.Map{"user_id": "U5"})
	tok, _ := body["token"].(string)
	doJSON(t, app, "POST", "/adult/terms", fiber.Map{"user_id": "U5", "token": tok, "response": "ACEITO18"})
	doJSON(t, app, "POST", "/adult/verify_age", fiber.Map{"user_id": "U5", "token": tok, "birth_date": "1990-01-01"})

	code, resp := doJSON(t, app, "PUT", "/adult/intensity", fiber.Map{"user_id": "U5", "level": 3})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "active_status", resp["status"])

	code, resp = doJSON(t, app, "POST", "/adult/revoke", fiber.Map{"user_id": "U5"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "revoked", resp["status"])

	p, err := ms.GetProfile("U5")
	require.NoError(t, err)
	assert.Equal(t, 3, p.IntensityLevel)

	code, _ = doJSON(t, app, "PUT", "/adult/intensity", fiber.Map{"user_id": "U5", "level": 1})
	assert.Equal(t, fiber.StatusForbidden, code)
}

func TestAgeFromBirthDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	age, ok := ageFromBirthDate("2007-06-01", now)
	require.True(t, ok)
	assert.Equal(t, 18, age)

	// Birthday tomorrow: still 17
	age, ok = ageFromBirthDate("2007-06-02", now)
	require.True(t, ok)
	assert.Equal(t, 17, age)

	_, ok = ageFromBirthDate("not-a-date", now)
	assert.False(t, ok)

	_, ok = ageFromBirthDate("2030-01-01", now)
	assert.False(t, ok)
}
