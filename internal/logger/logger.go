package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"contract-hooks/internal/types"
)

// Options controls how the logger is built
type Options struct {
	Debug bool
	// Dir, when set, adds a timestamped log file next to stderr output.
	Dir string
}

// New builds a zap logger from the options
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logPath := filepath.Join(opts.Dir, fmt.Sprintf("hooks_%s.log", timestamp))
		config.OutputPaths = append(config.OutputPaths, logPath)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// TransactionFields returns the fields every transaction log line carries
func TransactionFields(tx *types.Transaction, outcome types.OutcomeClass) []zap.Field {
	return []zap.Field{
		zap.String("transaction", tx.Name),
		zap.String("method", tx.Request.Method),
		zap.String("uri", tx.Request.URI),
		zap.Stringer("outcome", outcome),
	}
}

// Preview shortens secrets and bodies for log output to n runes
func Preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
