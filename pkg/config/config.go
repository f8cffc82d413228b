package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface. Values are resolved once at
// startup with precedence flags > env > file > defaults.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Chat struct {
		// Trigger is the substring in a posted body that activates generation.
		Trigger string `yaml:"trigger"`
		// Responder is the reserved author name for AI replies.
		Responder   string `yaml:"responder"`
		Placeholder string `yaml:"placeholder"`
		SeedAuthor  string `yaml:"seed_author"`
		SeedBody    string `yaml:"seed_body"`
		// ContextWindow is the number of prior messages sent as context for
		// live generation; RepairWindow is the smaller window used when
		// re-asking for a failed reply.
		ContextWindow int `yaml:"context_window"`
		RepairWindow  int `yaml:"repair_window"`
		// ChunkFlush is the buffered-text size (bytes) that triggers an
		// intermediate patch while streaming.
		ChunkFlush  int `yaml:"chunk_flush"`
		DeleteBatch int `yaml:"delete_batch"`
	} `yaml:"chat"`
	Provider struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
		// APIKey set here overrides the OPENAI_API_KEY environment value.
		APIKey       string  `yaml:"api_key"`
		SystemPrompt string  `yaml:"system_prompt"`
		MaxTokens    int     `yaml:"max_tokens"`
		Temperature  float64 `yaml:"temperature"`
		RPS          float64 `yaml:"rps"`
		Burst        int     `yaml:"burst"`
	} `yaml:"provider"`
	Repair struct {
		// Cron, when set, runs the repair sweep on a schedule.
		Cron          string `yaml:"cron"`
		BackoffStepMS int    `yaml:"backoff_step_ms"`
		BackoffEvery  int    `yaml:"backoff_every"`
	} `yaml:"repair"`
	Schedule struct {
		Queue   int `yaml:"queue"`
		Workers int `yaml:"workers"`
	} `yaml:"schedule"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// ApplyDefaults fills unset fields with the shipped defaults.
func (c *Config) ApplyDefaults() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "./.database"
	}
	if c.Chat.Trigger == "" {
		c.Chat.Trigger = "@gpt"
	}
	if c.Chat.Responder == "" {
		c.Chat.Responder = "TanAI"
	}
	if c.Chat.Placeholder == "" {
		c.Chat.Placeholder = "..."
	}
	if c.Chat.SeedAuthor == "" {
		c.Chat.SeedAuthor = "Tan"
	}
	if c.Chat.SeedBody == "" {
		c.Chat.SeedBody = "Hello! I'm Tan. Let's get this DB going! :D"
	}
	if c.Chat.ContextWindow <= 0 {
		c.Chat.ContextWindow = 10
	}
	if c.Chat.RepairWindow <= 0 {
		c.Chat.RepairWindow = 5
	}
	if c.Chat.ChunkFlush <= 0 {
		c.Chat.ChunkFlush = 25
	}
	if c.Chat.DeleteBatch <= 0 {
		c.Chat.DeleteBatch = 4
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.together.xyz/v1"
	}
	if c.Provider.Model == "" {
		c.Provider.Model = "meta-llama/Llama-3-70b-chat-hf"
	}
	if c.Provider.SystemPrompt == "" {
		c.Provider.SystemPrompt = "You are a terse bot in a group chat responding to q's. Respond naturally."
	}
	if c.Provider.MaxTokens <= 0 {
		c.Provider.MaxTokens = 1000
	}
	if c.Provider.Temperature == 0 {
		c.Provider.Temperature = 0.3
	}
	if c.Repair.BackoffStepMS <= 0 {
		c.Repair.BackoffStepMS = 5000
	}
	if c.Repair.BackoffEvery <= 0 {
		c.Repair.BackoffEvery = 5
	}
	if c.Schedule.Queue <= 0 {
		c.Schedule.Queue = 1024
	}
	if c.Schedule.Workers <= 0 {
		c.Schedule.Workers = 4
	}
}

// ResolveAPIKey applies the credential precedence: an explicit config
// override wins over the environment-provided value.
func (c *Config) ResolveAPIKey() string {
	if k := strings.TrimSpace(c.Provider.APIKey); k != "" {
		return k
	}
	if k := os.Getenv("TANCHAT_PROVIDER_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Load reads the yaml config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvOverrides applies environment overrides onto cfg and reports
// whether any env var was used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	if v := os.Getenv("TANCHAT_ADDR"); v != "" {
		envUsed = true
		if host, port, ok := splitHostPort(v); ok {
			cfg.Server.Address = host
			cfg.Server.Port = port
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("TANCHAT_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("TANCHAT_TRIGGER"); v != "" {
		envUsed = true
		cfg.Chat.Trigger = v
	}
	if v := os.Getenv("TANCHAT_RESPONDER"); v != "" {
		envUsed = true
		cfg.Chat.Responder = v
	}
	if v := os.Getenv("TANCHAT_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Chat.ContextWindow = n
		}
	}
	if v := os.Getenv("TANCHAT_CHUNK_FLUSH"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Chat.ChunkFlush = n
		}
	}
	if v := os.Getenv("TANCHAT_PROVIDER_BASE_URL"); v != "" {
		envUsed = true
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("TANCHAT_PROVIDER_MODEL"); v != "" {
		envUsed = true
		cfg.Provider.Model = v
	}
	if v := os.Getenv("TANCHAT_REPAIR_CRON"); v != "" {
		envUsed = true
		cfg.Repair.Cron = v
	}
	if v := os.Getenv("TANCHAT_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

func splitHostPort(v string) (string, int, bool) {
	i := strings.LastIndex(v, ":")
	if i < 0 {
		return "", 0, false
	}
	p, err := strconv.Atoi(v[i+1:])
	if err != nil {
		return "", 0, false
	}
	return v[:i], p, true
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and TANCHAT_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("TANCHAT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// LoadEffective loads config from path (when present), applies defaults and
// environment overrides, and reports whether env vars were used.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, envUsed, nil
}
