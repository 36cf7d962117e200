package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"
)

// Config holds all causerie configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	DBPath    string          `yaml:"db_path" env:"CAUSERIE_DB_PATH"`
	LogLevel  string          `yaml:"log_level" env:"CAUSERIE_LOG_LEVEL"`
	Primary   PrimaryConfig   `yaml:"primary"`
	Secondary SecondaryConfig `yaml:"secondary"`
	Speech    SpeechConfig    `yaml:"speech"`
	Retry     RetryConfig     `yaml:"retry"`
	Relay     RelayConfig     `yaml:"relay"`
	Learner   LearnerConfig   `yaml:"learner"`
	Tracker   TrackerConfig   `yaml:"tracker"`
}

// Provider modes for the primary text provider.
const (
	ModeDirect = "direct"
	ModeRelay  = "relay"
)

// PrimaryConfig defines the OpenAI-compatible primary text provider.
// Mode "direct" calls URL with APIKey; mode "relay" calls RelayURL and
// leaves the credential to the relay.
type PrimaryConfig struct {
	Name        string        `yaml:"name"`
	Mode        string        `yaml:"mode"`
	URL         string        `yaml:"url"`
	RelayURL    string        `yaml:"relay_url"`
	APIKey      string        `yaml:"api_key" env:"CAUSERIE_PRIMARY_API_KEY"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SecondaryConfig defines the Gemini fallback text provider.
type SecondaryConfig struct {
	Name    string        `yaml:"name"`
	APIKey  string        `yaml:"api_key" env:"CAUSERIE_GEMINI_API_KEY"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Speech backends.
const (
	SpeechGemini = "gemini"
	SpeechPolly  = "polly"
)

// SpeechConfig controls speech synthesis.
type SpeechConfig struct {
	Backend           string        `yaml:"backend"`
	Model             string        `yaml:"model"`
	Voice             string        `yaml:"voice"`
	SampleRate        int           `yaml:"sample_rate"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
	Region            string        `yaml:"region"`
	Engine            string        `yaml:"engine"`
}

// RetryConfig controls the primary provider's retry loop.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// RelayConfig controls the same-origin relay.
type RelayConfig struct {
	Enabled     bool          `yaml:"enabled"`
	UpstreamURL string        `yaml:"upstream_url"`
	UpstreamKey string        `yaml:"upstream_key" env:"CAUSERIE_RELAY_UPSTREAM_KEY"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LearnerConfig is the static personalization block added to every prompt.
type LearnerConfig struct {
	Name           string   `yaml:"name"`
	NativeLanguage string   `yaml:"native_language"`
	Level          string   `yaml:"level"`
	Goal           string   `yaml:"goal"`
	Interests      []string `yaml:"interests"`
}

// TrackerConfig controls the provider attempt log.
type TrackerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		DBPath:   defaultDBPath(),
		LogLevel: "info",
		Primary: PrimaryConfig{
			Name:        "groq",
			Mode:        ModeDirect,
			URL:         "https://api.groq.com/openai/v1",
			RelayURL:    "http://localhost:8080/api/chat",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     60 * time.Second,
		},
		Secondary: SecondaryConfig{
			Name:    "gemini",
			Model:   "gemini-2.5-flash",
			Timeout: 90 * time.Second,
		},
		Speech: SpeechConfig{
			Backend:           SpeechGemini,
			Model:             "gemini-2.5-flash-preview-tts",
			Voice:             "Kore",
			SampleRate:        24000,
			RequestsPerMinute: 10,
			Timeout:           60 * time.Second,
			Region:            "eu-west-1",
			Engine:            "neural",
		},
		Retry: RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   500 * time.Millisecond,
		},
		Relay: RelayConfig{
			UpstreamURL: "https://api.groq.com/openai/v1/chat/completions",
			Timeout:     60 * time.Second,
		},
		Learner: LearnerConfig{
			NativeLanguage: "English",
			Level:          "B1",
		},
		Tracker: TrackerConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML config file, expands environment variables and
// applies CAUSERIE_* overrides. An empty path yields the defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	dbPath, err := homedir.Expand(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("expand db_path: %w", err)
	}
	cfg.DBPath = dbPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Primary.Mode {
	case ModeDirect, ModeRelay:
	default:
		return fmt.Errorf("primary.mode must be %q or %q, got %q", ModeDirect, ModeRelay, c.Primary.Mode)
	}
	switch c.Speech.Backend {
	case SpeechGemini, SpeechPolly:
	default:
		return fmt.Errorf("speech.backend must be %q or %q, got %q", SpeechGemini, SpeechPolly, c.Speech.Backend)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Primary.Timeout <= 0 || c.Secondary.Timeout <= 0 || c.Speech.Timeout <= 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	if c.Speech.SampleRate <= 0 {
		return fmt.Errorf("speech.sample_rate must be positive, got %d", c.Speech.SampleRate)
	}
	return nil
}

// HasPrimaryCredential reports whether the primary provider can be called.
// In relay mode the credential lives in the relay, so the client always may try.
func (c *Config) HasPrimaryCredential() bool {
	return c.Primary.Mode == ModeRelay || c.Primary.APIKey != ""
}

func defaultDBPath() string {
	scope := gap.NewScope(gap.User, "causerie")
	path, err := scope.DataPath("causerie.db")
	if err != nil {
		return "causerie.db"
	}
	return path
}
