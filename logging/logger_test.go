package logging

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/offlinekit/offsync/errors"
)

func TestLogger(t *testing.T) {
	configs := []Config{
		{Level: "debug", Format: "text", Environment: EnvDevelopment, AddSource: true},
		{Level: "info", Format: "json", Environment: EnvProduction, AddSource: false},
	}

	for _, config := range configs {
		t.Run("Environment_"+config.Environment, func(t *testing.T) {
			logger := NewLogger(config)

			logger.Debug("Debug message", slog.String("key", "value"))
			logger.Info("Info message", slog.Int("count", 42))
			logger.Warn("Warning message", slog.Bool("enabled", true))

			testErr := errors.New(errors.OpSave, fmt.Errorf("storage error"))
			logger.LogError(context.Background(), testErr, "Operation failed")

			childLogger := logger.WithComponent(Component("test"))
			childLogger.Info("Child logger message")

			err := logger.LogOperation(
				context.Background(),
				Operation("test_op"),
				Component("test_component"),
				func() error {
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("ENVIRONMENT", EnvTest)

	config := GetConfigFromEnv()
	if config.Level != "warn" {
		t.Errorf("Level = %q, want %q", config.Level, "warn")
	}
	if config.Format != "text" {
		t.Errorf("Format = %q, want %q", config.Format, "text")
	}
	if config.AddSource {
		t.Error("AddSource should be disabled in test environment")
	}
}

func TestLogOperation_Error(t *testing.T) {
	logger := NewLogger(Config{Level: "error", Format: "text", Environment: EnvTest})

	wantErr := errors.NewNetworkError(errors.OpDispatch, fmt.Errorf("unreachable"))
	err := logger.LogOperation(context.Background(), Operation("dispatch"), Component("transport"), func() error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("LogOperation should return the operation error, got %v", err)
	}
}
