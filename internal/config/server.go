package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	MinPlayers int `env:"MIN_PLAYERS" envDefault:"3"`
	MaxPlayers int `env:"MAX_PLAYERS" envDefault:"16"`
	Rounds     int `env:"ROUNDS" envDefault:"3"`

	RoundDuration      time.Duration `env:"ROUND_DURATION" envDefault:"60s"`
	VotingDuration     time.Duration `env:"VOTING_DURATION" envDefault:"90s"`
	RoleRevealDuration time.Duration `env:"ROLE_REVEAL_DURATION" envDefault:"10s"`
	ResultsDuration    time.Duration `env:"RESULTS_DURATION" envDefault:"60s"`

	MaxContentLen      int           `env:"MAX_CONTENT_LEN" envDefault:"280"`
	AutoStartThreshold int           `env:"AUTO_START_THRESHOLD" envDefault:"0"`
	AutoStartGrace     time.Duration `env:"AUTO_START_GRACE" envDefault:"5s"`

	BackupInterval  time.Duration `env:"BACKUP_INTERVAL" envDefault:"30s"`
	VerifyInterval  time.Duration `env:"VERIFY_INTERVAL" envDefault:"2m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	RoomTTL         time.Duration `env:"ROOM_TTL" envDefault:"6h"`

	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"15s"`
	StreamMaxLifetime    time.Duration `env:"STREAM_MAX_LIFETIME" envDefault:"30m"`
	HeartbeatFailLimit   int           `env:"HEARTBEAT_FAIL_LIMIT" envDefault:"3"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE" envDefault:"32"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
