package config

import (
	"os"
	"path/filepath"
)

// PathEnv names the environment variable that overrides the config path.
const PathEnv = "JSOP_CONFIG"

// Path returns $JSOP_CONFIG if set, otherwise ~/.jsop/config.
func Path() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".jsop", "config"), nil
}
