package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/elie00/stream-party-sub001/internal/playsync"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// Sync protocol tunables. Served to clients in room_state so every
	// participant of a party runs the same constants.
	Sync playsync.Tunables `mapstructure:"sync"`

	// Resync flood guard per session.
	ResyncLimit    int           `mapstructure:"resync_limit"`
	ResyncInterval time.Duration `mapstructure:"resync_interval"`
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

	def := playsync.DefaultTunables()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("resync_limit", 5)
	v.SetDefault("resync_interval", "10s")
	v.SetDefault("sync.broadcast_interval", def.BroadcastInterval)
	v.SetDefault("sync.converge_threshold", def.ConvergeThreshold)
	v.SetDefault("sync.hard_seek_threshold", def.HardSeekThreshold)
	v.SetDefault("sync.nudge_rate", def.NudgeRate)
	v.SetDefault("sync.nudge_duration", def.NudgeDuration)
	v.SetDefault("sync.suppress_window", def.SuppressWindow)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
