package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	ServerURL  string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	RoomID     string `env:"ROOM_ID" envDefault:"lobby"`
	PlayerName string `env:"PLAYER_NAME" envDefault:"sync-bot"`
	AsAdmin    bool   `env:"AS_ADMIN" envDefault:"false"`

	QueuePath string `env:"QUEUE_PATH" envDefault:""`

	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"10"`
	PollInterval         time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
