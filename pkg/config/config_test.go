package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	assert.Equal(t, 720, config.AgeGate.SessionTTLHours)
	assert.Equal(t, 60, config.AgeGate.VerificationTTLMins)
	assert.Equal(t, 24, config.AgeGate.UnderageCooldownHours)
	assert.Equal(t, 0.30, config.Responder.SituationalSuffixProb)
	assert.Equal(t, ":8080", config.Web.Listen)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	content := []byte(`
age_gate:
  session_ttl_hours: 48
  verification_ttl_minutes: 30
  underage_cooldown_hours: 12
responder:
  situational_suffix_prob: 0.5
model_settings:
  base_url: https://example.test/v1
  model: test-model
  temperature: 0.7
web:
  listen: ":9090"
`)
	tmpfile, err := os.CreateTemp("", "config_test_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, 48, config.AgeGate.SessionTTLHours)
	assert.Equal(t, 30, config.AgeGate.VerificationTTLMins)
	assert.Equal(t, 12, config.AgeGate.UnderageCooldownHours)
	assert.Equal(t, 0.5, config.Responder.SituationalSuffixProb)
	assert.Equal(t, "https://example.test/v1", config.ModelSettings.BaseURL)
	assert.Equal(t, ":9090", config.Web.Listen)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "2")
	t.Setenv("VERIFICATION_TTL_MINUTES", "5")
	t.Setenv("UNDERAGE_COOLDOWN_HOURS", "1")
	t.Setenv("SITUATIONAL_SUFFIX_PROB", "0")

	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	assert.Equal(t, 2, config.AgeGate.SessionTTLHours)
	assert.Equal(t, 5, config.AgeGate.VerificationTTLMins)
	assert.Equal(t, 1, config.AgeGate.UnderageCooldownHours)
	assert.Equal(t, 0.0, config.Responder.SituationalSuffixProb)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	content := []byte(`
age_gate:
  session_ttl_hours: [ unclosed bracket
`)
	tmpfile, err := os.CreateTemp("", "config_invalid_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = LoadConfig(tmpfile.Name())
	assert.Error(t, err)
}
