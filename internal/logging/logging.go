// Package logging builds the logr.Logger used across hpcmaker.
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to stderr. With debug set,
// V(1) messages are emitted as well.
func New(debug bool) logr.Logger {
	return NewWithWriter(os.Stderr, debug)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, debug bool) logr.Logger {
	level := zapcore.InfoLevel
	if debug {
		// logr V(1) maps to zap level -1.
		level = zapcore.Level(-1)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)
	return zapr.NewLogger(zap.New(core))
}
