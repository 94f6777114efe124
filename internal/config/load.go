package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the result of resolving and reading the earshot config file.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves the config file location, parses it, and validates the
// result. A missing file is not an error; the daemon runs on defaults and a
// warning notes the fallback.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	defaults := Default()
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		warning := Warning{Message: fmt.Sprintf("config file %q not found; using defaults", path)}
		return Loaded{Path: path, Config: defaults, Warnings: []Warning{warning}}, nil
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), defaults)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}
