package commands

import (
	"fmt"
	"os"

	"github.com/capnode/tcapd/internal/logger"
)

// InitLogger initializes the structured logger. Level and format follow
// TCAPD_LOG_LEVEL / TCAPD_LOG_FORMAT, defaulting to INFO and text, the
// same defaults the teacher's logger package applies on its own.
func InitLogger() error {
	level := os.Getenv("TCAPD_LOG_LEVEL")
	if level == "" {
		level = "INFO"
	}
	format := os.Getenv("TCAPD_LOG_FORMAT")
	if format == "" {
		format = "text"
	}

	cfg := logger.Config{
		Level:  level,
		Format: format,
		Output: "stdout",
	}
	if err := logger.Init(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
