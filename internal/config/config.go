// Package config holds the engine's runtime configuration, built from CLI
// flags the same way the teacher's flat Config struct was.
package config

import "github.com/alienxp03/logscope/internal/detect"

// Config is the set of knobs the CLI surface exposes to the engine.
type Config struct {
	Follow          bool
	LogToFile       string
	LogLevel        int
	ForcedEncoding  detect.Encoding
	CaseInsensitive bool
	Grep            string
	PollIntervalMS  int
}

// Default returns the engine's default configuration.
func Default() Config {
	return Config{
		ForcedEncoding: detect.AutoDetect,
		LogLevel:       1,
		PollIntervalMS: 1000,
	}
}
