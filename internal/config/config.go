package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

const (
	appName        = "acnedetect"
	keychainItem   = "openai_api_key"
	apiKeyEnv      = "ACNEDETECT_OPENAI_API_KEY"
	fallbackKeyEnv = "OPENAI_API_KEY"
)

// Backend is the platform settings store: `defaults` on macOS, a JSON file
// elsewhere. Getters report ok=false for keys that were never set.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetFloat(key string) (val float64, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetFloat(key string, val float64) error
}

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Proxy   ProxyConfig
	Chat    ChatConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port            int
	AIRatePerMinute int
	SessionIdleTTL  string
}

type StorageConfig struct {
	DataDir string
}

type ProxyConfig struct {
	BaseURL      string
	Model        string
	OpenAIAPIKey string
	Timeout      string
	ImageTimeout string
}

type ChatConfig struct {
	Temperature float64
	MaxTokens   int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            4000,
			AIRatePerMinute: 20,
			SessionIdleTTL:  "2h",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Proxy: ProxyConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			Timeout:      "60s",
			ImageTimeout: "120s",
		},
		Chat: ChatConfig{
			Temperature: 0.5,
			MaxTokens:   400,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// TimeoutDuration returns the text request timeout, or 60s when unparseable.
func (p ProxyConfig) TimeoutDuration() time.Duration {
	return parseDuration(p.Timeout, 60*time.Second)
}

// ImageTimeoutDuration returns the image request timeout, or 120s when unparseable.
func (p ProxyConfig) ImageTimeoutDuration() time.Duration {
	return parseDuration(p.ImageTimeout, 120*time.Second)
}

// SessionIdleDuration returns how long an idle session is kept, or 2h when
// unparseable. Zero disables expiry.
func (s ServerConfig) SessionIdleDuration() time.Duration {
	return parseDuration(s.SessionIdleTTL, 2*time.Hour)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.acnedetect.app) and the
// API key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/acnedetect/config.json
// and the API key falls back to $XDG_DATA_HOME/acnedetect/secrets.json.
//
// Environment variables (ACNEDETECT_*) override backend values on all
// platforms. A missing API key is a CONFIGURATION error.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend(), keychainReader{})
}

// LoadSettings is Load without the API key requirement. Client commands
// that only talk to a running server use it.
func LoadSettings() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return loadSettings(newPlatformBackend())
}

func loadDotEnv() error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Wrap(apperr.CodeConfiguration, "reading .env file", err)
	}
	return nil
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadSettings(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, apperr.Wrap(apperr.CodeConfiguration, "reading config backend", err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func loadWith(b Backend, kc keychain) (Config, error) {
	cfg, err := loadSettings(b)
	if err != nil {
		return Config{}, err
	}

	if cfg.Proxy.OpenAIAPIKey == "" {
		cfg.Proxy.OpenAIAPIKey = os.Getenv(fallbackKeyEnv)
	}
	if cfg.Proxy.OpenAIAPIKey == "" {
		if key, err := kc.Get(appName, keychainItem); err == nil && key != "" {
			cfg.Proxy.OpenAIAPIKey = key
		}
	}

	if cfg.Proxy.OpenAIAPIKey == "" {
		msg := "missing required config: OpenAI API key. " +
			"Set it via environment variable " + apiKeyEnv + " or " + fallbackKeyEnv +
			", a .env file, `acnedetect config set-api-key`" +
			apiKeyHint()
		return Config{}, apperr.New(apperr.CodeConfiguration, msg)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// SetAPIKey stores the completion service key in the platform secret store.
func SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return apperr.MissingField("API key must not be empty")
	}
	return keychainSet(appName, keychainItem, key)
}
