// Package logging builds the zap logger shared by the command line and the vault.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelNone  = "none"
	LevelDebug = "debug"
	LevelInfo  = "info"

	// EnvLevel names the environment variable read by FromEnv
	EnvLevel = "ERIS_LOG_LEVEL"
)

// New returns a logger writing to stderr at the given level.
// An empty level or "none" disables logging.
func New(level string) (*zap.Logger, error) {
	if level == "" || level == LevelNone {
		return zap.NewNop(), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = lvl > zapcore.DebugLevel
	return config.Build()
}

// FromEnv returns a logger at the level named by ERIS_LOG_LEVEL
func FromEnv() (*zap.Logger, error) {
	return New(os.Getenv(EnvLevel))
}
