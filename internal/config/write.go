package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeycumines/jsinterop/internal/storage"
)

// SetKeyInFile sets a global option in the file at path, keeping comments,
// ordering and every section intact. An existing global line for key is
// rewritten in place; otherwise the line goes before the first section
// header, or at the end. The file is created if missing.
func SetKeyInFile(path, key, value string) error {
	if key == "" || strings.ContainsAny(key, " \t\n[]#") {
		return fmt.Errorf("invalid config key %q", key)
	}
	if strings.Contains(value, "\n") {
		return fmt.Errorf("config value for %q spans lines", key)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	entry := key
	if value != "" {
		entry += " " + value
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	at := len(lines)
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			at = i
			break
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines[:at], append([]string{entry}, lines[at:]...)...)
	}

	return storage.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
