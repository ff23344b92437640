package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/stockflow/internal/constants"
)

// GlobalStockflowPath returns the path to the global .stockflow directory.
// On Unix: ~/.stockflow
// On Windows: %USERPROFILE%\.stockflow
func GlobalStockflowPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.StoreDirName), nil
}

// LocalStockflowPath returns the path to the .stockflow directory of a
// project root.
func LocalStockflowPath(projectRoot string) string {
	return filepath.Join(projectRoot, constants.StoreDirName)
}

// EnsureGlobalStockflowDir creates the global .stockflow directory if it
// doesn't exist.
func EnsureGlobalStockflowDir() error {
	globalPath, err := GlobalStockflowPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(globalPath, 0755); err != nil {
		return fmt.Errorf("failed to create global %s directory: %w", constants.StoreDirName, err)
	}
	return nil
}
