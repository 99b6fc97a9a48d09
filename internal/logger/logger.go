// Package logger builds the process-wide zap logger: console output for
// humans plus a JSON file for ingestion, with a per-run correlation id.
package logger

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init returns a logger that tees to stdout and the given file. Every entry
// carries a run_id so concurrent invocations can be told apart in shared
// log files.
func Init(debug bool, logFile string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
	}

	consoleEncoder := zapcore.NewConsoleEncoder(config.EncoderConfig)
	fileEncoder := zapcore.NewJSONEncoder(config.EncoderConfig)

	logFileHandle, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), config.Level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logFileHandle), config.Level),
	)

	return zap.New(core).With(zap.String("run_id", uuid.New().String())), nil
}
