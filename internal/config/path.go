package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.conf location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "earshot", "config.conf"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "earshot", "config.conf"), nil
}

// ResolveOutputDir expands the recording output directory, defaulting under
// XDG_DATA_HOME when capture.output_dir is unset.
func ResolveOutputDir(cfg Config) (string, error) {
	if dir := strings.TrimSpace(cfg.Capture.OutputDir); dir != "" {
		return dir, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "earshot", "recordings"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for recording output")
	}

	return filepath.Join(home, ".local", "share", "earshot", "recordings"), nil
}
