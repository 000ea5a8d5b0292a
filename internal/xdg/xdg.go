// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package xdg locates Agora's files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "agora"

// ConfigFileName is the configuration file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for agora.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_HOME_UNKNOWN").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigFile returns the path of ConfigFileName in ConfigDir, or ""
// when no such file exists.
func DefaultConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ConfigFileName)

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("XDG_CONFIG_IS_DIR").With("path", path).Errorf("%s is a directory", path)
	}
	return path, nil
}
