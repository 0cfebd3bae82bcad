package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`

	// Client side.
	APIBase        string        `mapstructure:"api_base"`
	RoomName       string        `mapstructure:"room_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	DeviceSettle   time.Duration `mapstructure:"device_settle"`
	LevelSmoothing float64       `mapstructure:"level_smoothing"`
	LevelBoost     float64       `mapstructure:"level_boost"`

	// Token server side.
	Port             int           `mapstructure:"port"`
	LiveKitURL       string        `mapstructure:"livekit_url"`
	LiveKitAPIKey    string        `mapstructure:"livekit_api_key"`
	LiveKitAPISecret string        `mapstructure:"livekit_api_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("api_base", "http://localhost:8000")
	v.SetDefault("room_name", "")
	v.SetDefault("connect_timeout", "15s")
	v.SetDefault("device_settle", "300ms")
	v.SetDefault("level_smoothing", 0.8)
	v.SetDefault("level_boost", 4.0)

	v.SetDefault("port", 8000)
	v.SetDefault("livekit_url", "ws://localhost:7880")
	v.SetDefault("livekit_api_key", "devkey")
	v.SetDefault("livekit_api_secret", "secret")
	v.SetDefault("token_ttl", "1h")

	// Deployment overrides come from LIVEKIT_URL, LIVEKIT_API_KEY, etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
