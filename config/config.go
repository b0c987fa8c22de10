package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Room     RoomConfig     `mapstructure:"room"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress      string        `mapstructure:"http_address"`
	RPCAddress       string        `mapstructure:"rpc_address"`
	MetricsAddress   string        `mapstructure:"metrics_address"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
}

type RoomConfig struct {
	// ReclaimSeatPregame controls what happens to a room's capacity when a
	// player is removed. When true (the default), a departure before the
	// game starts leaves capacity unchanged so another player can take the
	// seat; a mid-game departure always decrements capacity.
	ReclaimSeatPregame bool `mapstructure:"reclaim_seat_pregame"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.heartbeat_timeout", "60s")
	viper.SetDefault("room.reclaim_seat_pregame", true)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
