package main

import "time"

// Config is populated from the environment, after an optional .env load.
type Config struct {
	Host          string        `envconfig:"HOST" default:"0.0.0.0"`
	Port          int           `envconfig:"PORT" default:"8080"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"15s"`
	ShutdownWait  time.Duration `envconfig:"SHUTDOWN_WAIT" default:"10s"`
}
