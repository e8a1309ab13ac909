package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fangligamedev/OiiLike/internal/config"
)

// CheckExisting returns an error if dir already holds an oiilike.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'oiilike init --force' to reinitialize (this will overwrite existing configuration)", config.DefaultFileName)
}
