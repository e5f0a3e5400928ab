package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AgeGate struct {
		SessionTTLHours       int `yaml:"session_ttl_hours"`
		VerificationTTLMins   int `yaml:"verification_ttl_minutes"`
		UnderageCooldownHours int `yaml:"underage_cooldown_hours"`
	} `yaml:"age_gate"`
	Responder struct {
		SituationalSuffixProb float64 `yaml:"situational_suffix_prob"`
	} `yaml:"responder"`
	ModelSettings struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"model_settings"`
	Web struct {
		Listen string `yaml:"listen"`
	} `yaml:"web"`
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{}
	config.setDefaults()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		config.applyEnvOverrides()
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	config.applyEnvOverrides()
	return config, nil
}

func (c *Config) setDefaults() {
	c.AgeGate.SessionTTLHours = 720
	c.AgeGate.VerificationTTLMins = 60
	c.AgeGate.UnderageCooldownHours = 24
	c.Responder.SituationalSuffixProb = 0.30
	c.ModelSettings.BaseURL = "https://api.openai.com/v1"
	c.ModelSettings.Model = "llama-3.3-70b"
	c.ModelSettings.Temperature = 1
	c.Web.Listen = ":8080"
}

// applyEnvOverrides lets deployments tune the age-gate knobs without
// shipping a config file.
func (c *Config) applyEnvOverrides() {
	if v, ok := envInt("SESSION_TTL_HOURS"); ok {
		c.AgeGate.SessionTTLHours = v
	}
	if v, ok := envInt("VERIFICATION_TTL_MINUTES"); ok {
		c.AgeGate.VerificationTTLMins = v
	}
	if v, ok := envInt("UNDERAGE_COOLDOWN_HOURS"); ok {
		c.AgeGate.UnderageCooldownHours = v
	}
	if v, ok := envFloat("SITUATIONAL_SUFFIX_PROB"); ok {
		c.Responder.SituationalSuffixProb = v
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(name string) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
