// Package scaffold writes the starter oiilike.yml for `oiilike init`.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fangligamedev/OiiLike/internal/config"
	"github.com/fangligamedev/OiiLike/internal/printer"
)

const header = `# OiiLike blackboard configuration.
# Agents: producer, voidshaper, codeweaver, inquisitor.
# Set REDIS_URL to mirror events to Redis, OII_SPACE to pick the space name.
`

// Initialize writes a default oiilike.yml into dir.
// If force is true, an existing file is replaced.
func Initialize(dir string, force bool) (string, error) {
	path := filepath.Join(dir, config.DefaultFileName)

	if !force {
		if err := CheckExisting(dir); err != nil {
			return "", err
		}
	} else if _, err := os.Stat(path); err == nil {
		printer.Warning("Removing existing %s...\n", config.DefaultFileName)
	}

	data, err := config.Default().Marshal()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	// Round-trip through the loader so init never leaves an unusable file
	if _, err := config.Load(path); err != nil {
		return "", fmt.Errorf("created %s is invalid: %w", config.DefaultFileName, err)
	}

	return path, nil
}

// PrintSuccess prints the success message with the created file
func PrintSuccess(path string) {
	printer.Success("Successfully initialized OiiLike project!\n")
	printer.Println("\nCreated:")
	printer.Printf("  ✓ %s\n", path)
	printer.Println("\nNext steps:")
	printer.Println("  1. Adjust agent workers and resource categories in oiilike.yml")
	printer.Println("  2. Run 'oiilike run --request \"a bouncing ball\"' to drive a request through the agents")
	printer.Println("  3. Export REDIS_URL and use 'oiilike watch' to follow a running space")
}
