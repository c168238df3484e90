package main

import (
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootConfig struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logLevel string

	logger *zap.Logger
}

func (cfg *rootConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'l',
		LongName:    "log",
		Value:       ffval.NewEnum(&cfg.logLevel, "info", "i", "debug", "d", "warn", "w", "error", "e", "none", "n"),
		Usage:       "log level: i/info, d/debug, w/warn, e/error, n/none",
		Placeholder: "LEVEL",
	})
}

// newLogger returns a console logger writing to dst at the given level.
func newLogger(level string, dst io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch level {
	case "n", "none":
		return zap.NewNop(), nil
	case "d", "debug":
		lvl = zapcore.DebugLevel
	case "i", "info":
		lvl = zapcore.InfoLevel
	case "w", "warn":
		lvl = zapcore.WarnLevel
	case "e", "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.AddSync(dst), lvl)
	return zap.New(core), nil
}
