package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Relay  RelayConfig  `mapstructure:"relay"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type RelayConfig struct {
	Port           string `mapstructure:"port"`
	JoinTimeoutSec int    `mapstructure:"join_timeout_sec"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var AppConfig Config

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults. Error: %v", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if AppConfig.Server.Port == "" {
		AppConfig.Server.Port = ":8080"
	}
	if AppConfig.Relay.Port == "" {
		AppConfig.Relay.Port = ":4433"
	}
	if AppConfig.Relay.JoinTimeoutSec <= 0 {
		AppConfig.Relay.JoinTimeoutSec = 10
	}

	log.Println("Configuration loaded successfully")
}
