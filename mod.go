// Package cman is the root of the contract manager. It holds the process-wide
// logger and the list of Prometheus collectors that the packages register.
package cman

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

const defaultLevel = zerolog.InfoLevel

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. By default, it only prints
// info level and above. Use LLVL=debug (or trace) to see more.
var Logger = zerolog.New(logout).Level(levelFromEnv()).
	With().Timestamp().Logger().
	With().Caller().Logger()

// PromCollectors exposes the Prometheus collectors created by the packages.
// They are registered when the metrics handler is started.
var PromCollectors []prometheus.Collector

func levelFromEnv() zerolog.Level {
	lvl := os.Getenv(EnvLogLevel)

	level, err := zerolog.ParseLevel(lvl)
	if err != nil || lvl == "" {
		return defaultLevel
	}

	return level
}
