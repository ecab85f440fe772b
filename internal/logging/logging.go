// Package logging builds the zap logger used for diagnostics. Logs go to
// stderr in console format so they never mix with command output.
package logging

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// EnvLevel overrides the configured level.
const EnvLevel = "PJ_LOG_LEVEL"

// LevelOff disables logging entirely.
const LevelOff = "off"

// ResolveLevel picks the effective level: verbose wins, then the
// environment, then the configured level.
func ResolveLevel(verbose bool, env map[string]string, configured string) string {
	if verbose {
		return "debug"
	}

	if lvl := strings.TrimSpace(env[EnvLevel]); lvl != "" {
		return lvl
	}

	return configured
}

// New returns a console logger writing to w at level. "off" yields a no-op
// logger.
func New(level string, w io.Writer) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == LevelOff {
		return zap.NewNop(), nil
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), lvl)

	return zap.New(core).Named("pj"), nil
}

// NewObserved returns a logger that records every entry at or above level,
// for tests.
func NewObserved(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)

	return zap.New(core), logs
}

// Sync flushes l, ignoring the errors stderr returns on Linux when it is a
// terminal or pipe.
func Sync(l *zap.Logger) error {
	err := l.Sync()
	if err == nil {
		return nil
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}

	return err
}
