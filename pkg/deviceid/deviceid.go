// Package deviceid resolves the stable identifier a host reports under.
// Resolution order: explicit environment override, OS machine id, then a
// random id persisted to a state file so restarts keep the same identity.
package deviceid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnvOverride names the environment variable that, when set, wins over
// every other identity source. Useful for containers sharing a machine id.
const EnvOverride = "HOSTPULSE_DEVICE_ID"

// Resolve returns the device identifier for this host. statePath is where
// a generated fallback id is persisted; it is only written when neither the
// env override nor the OS machine id is available.
func Resolve(statePath string, logger *zap.Logger) (string, error) {
	if id := os.Getenv(EnvOverride); id != "" {
		logger.Info("Using device ID from environment", zap.String("device_id", id))
		return id, nil
	}

	if id, err := machineid.ID(); err == nil && id != "" {
		logger.Info("Using OS machine ID", zap.String("device_id", id))
		return id, nil
	} else if err != nil {
		logger.Warn("Machine ID unavailable, falling back to persisted ID", zap.Error(err))
	}

	return persisted(statePath, logger)
}

// persisted reads a previously generated id from statePath, or generates
// and stores a new one.
func persisted(statePath string, logger *zap.Logger) (string, error) {
	if data, err := os.ReadFile(statePath); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			logger.Info("Using persisted device ID", zap.String("device_id", id))
			return id, nil
		}
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(statePath, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to persist device ID: %w", err)
	}

	logger.Info("Generated new device ID", zap.String("device_id", id), zap.String("path", statePath))
	return id, nil
}
