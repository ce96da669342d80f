package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Bot      BotConfig      `json:"bot"`
	Channels ChannelsConfig `json:"channels"`
	Provider ProviderConfig `json:"provider"`
	Memory   MemoryConfig   `json:"memory"`
	Tarot    TarotConfig    `json:"tarot"`
	Payments PaymentsConfig `json:"payments"`
	Ops      OpsConfig      `json:"ops"`
	mu       sync.RWMutex
}

type BotConfig struct {
	Workspace string `json:"workspace" env:"WANQING_BOT_WORKSPACE"`
	Persona   string `json:"persona" env:"WANQING_BOT_PERSONA"`
	LogLevel  string `json:"log_level" env:"WANQING_BOT_LOG_LEVEL"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
	Console ConsoleConfig `json:"console"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"WANQING_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"WANQING_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ConsoleConfig struct {
	Enabled bool   `json:"enabled" env:"WANQING_CHANNELS_CONSOLE_ENABLED"`
	UserID  string `json:"user_id" env:"WANQING_CHANNELS_CONSOLE_USER_ID"`
}

type ProviderConfig struct {
	APIKey      string  `json:"api_key" env:"WANQING_PROVIDER_API_KEY"`
	APIBase     string  `json:"api_base" env:"WANQING_PROVIDER_API_BASE"`
	Model       string  `json:"model" env:"WANQING_PROVIDER_MODEL"`
	MaxTokens   int     `json:"max_tokens" env:"WANQING_PROVIDER_MAX_TOKENS"`
	Temperature float64 `json:"temperature" env:"WANQING_PROVIDER_TEMPERATURE"`
}

// MemoryConfig drives the conversational memory subsystem. Thresholds are
// read once at startup; there is no hot reload.
type MemoryConfig struct {
	MaxTurns           int    `json:"max_turns" env:"WANQING_MEMORY_MAX_TURNS"`
	CountThreshold     int    `json:"count_threshold" env:"WANQING_MEMORY_COUNT_THRESHOLD"`
	TimeThresholdHours int    `json:"time_threshold_hours" env:"WANQING_MEMORY_TIME_THRESHOLD_HOURS"`
	SweepSchedule      string `json:"sweep_schedule" env:"WANQING_MEMORY_SWEEP_SCHEDULE"`
}

type TarotConfig struct {
	MaxReadings    int `json:"max_readings" env:"WANQING_TAROT_MAX_READINGS"`
	FreeTarotDaily int `json:"free_tarot_daily" env:"WANQING_TAROT_FREE_TAROT_DAILY"`
	FreeChatDaily  int `json:"free_chat_daily" env:"WANQING_TAROT_FREE_CHAT_DAILY"`
}

type PaymentsConfig struct {
	PriceTarotDetail  float64             `json:"price_tarot_detail" env:"WANQING_PAYMENTS_PRICE_TAROT_DETAIL"`
	PriceTarotReading float64             `json:"price_tarot_reading" env:"WANQING_PAYMENTS_PRICE_TAROT_READING"`
	PriceAIChat       float64             `json:"price_ai_chat" env:"WANQING_PAYMENTS_PRICE_AI_CHAT"`
	AdminUserIDs      FlexibleStringSlice `json:"admin_user_ids" env:"WANQING_PAYMENTS_ADMIN_USER_IDS"`
}

type OpsConfig struct {
	Host string `json:"host" env:"WANQING_OPS_HOST"`
	Port int    `json:"port" env:"WANQING_OPS_PORT"`
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Workspace: "~/.wanqing/workspace",
			Persona:   "wanqing",
			LogLevel:  "info",
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
			Console: ConsoleConfig{
				Enabled: false,
				UserID:  "console",
			},
		},
		Provider: ProviderConfig{
			APIBase:     "https://openrouter.ai/api/v1",
			Model:       "openai/gpt-5.2",
			MaxTokens:   2048,
			Temperature: 0.8,
		},
		Memory: MemoryConfig{
			MaxTurns:           40,
			CountThreshold:     5,
			TimeThresholdHours: 24,
			SweepSchedule:      "*/30 * * * *",
		},
		Tarot: TarotConfig{
			MaxReadings:    20,
			FreeTarotDaily: 3,
			FreeChatDaily:  20,
		},
		Payments: PaymentsConfig{
			PriceTarotDetail:  0.5,
			PriceTarotReading: 1.0,
			PriceAIChat:       0.1,
			AdminUserIDs:      FlexibleStringSlice{},
		},
		Ops: OpsConfig{
			Host: "127.0.0.1",
			Port: 18791,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Bot.Workspace)
}

// IsAdmin reports whether userID is listed in payments.admin_user_ids.
func (c *Config) IsAdmin(userID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.Payments.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
