package config

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config is the per-session configuration, read once from the
// environment at startup.
type Config struct {
	Port       int
	LogLevel   zerolog.Level
	Bootloader string
	Probe      bool
}

func FromEnv() Config {
	port := 9050
	if v := os.Getenv("SUBIQUITY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			port = p
		}
	}

	level := zerolog.InfoLevel
	if v := os.Getenv("SUBIQUITY_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			level = l
		}
	}

	bootloader := "bios"
	if v := os.Getenv("SUBIQUITY_BOOTLOADER"); v != "" {
		bootloader = v
	}

	probe := false
	if v := os.Getenv("SUBIQUITY_PROBE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			probe = b
		}
	}

	return Config{
		Port:       port,
		LogLevel:   level,
		Bootloader: bootloader,
		Probe:      probe,
	}
}
