package config

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DefaultPollInterval      = 1 * time.Second
	DefaultPollBackoff       = 2 * time.Second
	DefaultCatalogRefresh    = 5 * time.Second
	DefaultResolveRetries    = 3
	DefaultResolveRetryDelay = 1 * time.Second
	DefaultRecentWindow      = 10 * time.Second
	DefaultMaxUploadBytes    = 512 << 20
	DefaultAgentTimeout      = 60 * time.Second
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Log   Log   `yaml:"log"`
	Media Media `yaml:"media"`
	Chat  Chat  `yaml:"chat"`
	UI    UI    `yaml:"ui"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Media struct {
	Addr           string   `yaml:"addr" validate:"required"`
	Root           string   `yaml:"root" validate:"required"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Chat struct {
	Async bool  `yaml:"async"` // reply only through GET /api/chat/response
	Agent Agent `yaml:"agent"`
}

type Agent struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

type UI struct {
	Addr              string        `yaml:"addr" validate:"required"`
	BackendURL        string        `yaml:"backend_url" validate:"required,url"`
	SecureCookies     bool          `yaml:"secure_cookies"`
	CatalogRefresh    time.Duration `yaml:"catalog_refresh"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	PollBackoff       time.Duration `yaml:"poll_backoff"`
	PollMaxWait       time.Duration `yaml:"poll_max_wait"`   // 0 polls until resolved
	ResolveRetries    int           `yaml:"resolve_retries"` // negative disables retries
	ResolveRetryDelay time.Duration `yaml:"resolve_retry_delay"`
	RecentWindow      time.Duration `yaml:"recent_window"`
}

type Private struct {
	AgentEnv map[string]string `yaml:"agent_env"`
}

func loadPath(configPath string, output interface{}) error {
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("can't read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(configFile, output); err != nil {
		return fmt.Errorf("can't unmarshal config file %s: %w", configPath, err)
	}
	return nil
}

// Load reads public.yaml (required) and private.yaml (optional) from configFolder.
// .env files in the working directory and configFolder are applied first;
// MEDIADESK_* variables then override the YAML values.
func Load(configFolder string) (*Config, error) {
	for _, envFile := range []string{".env", path.Join(configFolder, ".env")} {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("can't load %s: %w", envFile, err)
			}
		}
	}

	var public Public
	if err := loadPath(path.Join(configFolder, "public.yaml"), &public); err != nil {
		return nil, err
	}

	var private Private
	privatePath := path.Join(configFolder, "private.yaml")
	if _, err := os.Stat(privatePath); err == nil {
		if err := loadPath(privatePath, &private); err != nil {
			return nil, err
		}
	}

	applyEnv(&public)
	applyDefaults(&public)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(public); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Config{Public: public, Private: private}, nil
}

func MustLoad(configFolder string) *Config {
	cfg, err := Load(configFolder)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func applyEnv(p *Public) {
	overrides := map[string]*string{
		"MEDIADESK_MEDIA_ADDR":    &p.Media.Addr,
		"MEDIADESK_MEDIA_ROOT":    &p.Media.Root,
		"MEDIADESK_UI_ADDR":       &p.UI.Addr,
		"MEDIADESK_BACKEND_URL":   &p.UI.BackendURL,
		"MEDIADESK_LOG_LEVEL":     &p.Log.Level,
		"MEDIADESK_AGENT_COMMAND": &p.Chat.Agent.Command,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
	if v := os.Getenv("MEDIADESK_CHAT_ASYNC"); v != "" {
		p.Chat.Async = strings.EqualFold(v, "true") || v == "1"
	}
}

func applyDefaults(p *Public) {
	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
	if p.Media.MaxUploadBytes <= 0 {
		p.Media.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if p.Chat.Agent.Timeout <= 0 {
		p.Chat.Agent.Timeout = DefaultAgentTimeout
	}
	if p.UI.CatalogRefresh <= 0 {
		p.UI.CatalogRefresh = DefaultCatalogRefresh
	}
	if p.UI.PollInterval <= 0 {
		p.UI.PollInterval = DefaultPollInterval
	}
	if p.UI.PollBackoff <= 0 {
		p.UI.PollBackoff = DefaultPollBackoff
	}
	if p.UI.PollMaxWait < 0 {
		p.UI.PollMaxWait = 0
	}
	switch {
	case p.UI.ResolveRetries == 0:
		p.UI.ResolveRetries = DefaultResolveRetries
	case p.UI.ResolveRetries < 0:
		p.UI.ResolveRetries = 0
	}
	if p.UI.ResolveRetryDelay <= 0 {
		p.UI.ResolveRetryDelay = DefaultResolveRetryDelay
	}
	if p.UI.RecentWindow <= 0 {
		p.UI.RecentWindow = DefaultRecentWindow
	}
}
