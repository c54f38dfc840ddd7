package config

// GameServerConfig is everything cmd/game-server reads from the
// environment, loaded in one call so startup has a single failure point.
type GameServerConfig struct {
	HTTP ServerConfig
	Log  LogConfig
}

func LoadGameServer() (GameServerConfig, error) {
	var cfg GameServerConfig
	var err error
	if cfg.Log, err = LoadLog(); err != nil {
		return GameServerConfig{}, err
	}
	if cfg.HTTP, err = LoadServer(); err != nil {
		return GameServerConfig{}, err
	}
	return cfg, nil
}
