package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the local client configuration: where the backend lives and
// how the TUI behaves. The backend credential is deliberately not part of
// it; the api key is typed into the settings view and pushed write-only.
type Config struct {
	ServerURL   string `mapstructure:"SERVER_URL"`
	ModelName   string `mapstructure:"MODEL_NAME"`
	BM25TopK    int    `mapstructure:"BM25_TOP_K"`
	LogFile     string `mapstructure:"LOG_FILE"`
	HTTPTimeout int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	StreamAsk   bool   `mapstructure:"STREAM_ASK"`
}

// SupportedModels are the model identifiers the backend accepts.
var SupportedModels = []string{
	"gpt-4o-mini",
	"gpt-4o",
	"gpt-4-turbo",
	"gpt-3.5-turbo",
}

func IsSupportedModel(name string) bool {
	for _, m := range SupportedModels {
		if m == name {
			return true
		}
	}
	return false
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_URL", "http://localhost:8000")
	viper.SetDefault("MODEL_NAME", "gpt-4o-mini")
	viper.SetDefault("BM25_TOP_K", 5)
	viper.SetDefault("LOG_FILE", "ragtui.log")
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 120)
	viper.SetDefault("STREAM_ASK", false)

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if !IsSupportedModel(cfg.ModelName) {
		cfg.ModelName = SupportedModels[0]
	}
	if cfg.BM25TopK <= 0 {
		cfg.BM25TopK = 5
	}

	return &cfg, nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}
