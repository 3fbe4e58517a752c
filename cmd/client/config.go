package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_ADDR is the relay TCP endpoint
	Addr string `envconfig:"CHAT_ADDR" default:"127.0.0.1:8080"`
	// CHAT_USERNAME answers the username prompt without asking
	Username string `envconfig:"CHAT_USERNAME"`
	// CHAT_COLOURS enables colorized notices
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
