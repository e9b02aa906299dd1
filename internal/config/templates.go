package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed all:templates
var templatesFS embed.FS

// WriteStarterConfig writes the commented starter testmend.toml into dir.
// It refuses to overwrite an existing config file.
func WriteStarterConfig(dir string) (string, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists at %s", path)
	}

	data, err := templatesFS.ReadFile("templates/" + ConfigFileName)
	if err != nil {
		return "", fmt.Errorf("reading embedded starter config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
