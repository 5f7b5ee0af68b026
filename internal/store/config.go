package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

const envConfigDir = "EXPENSECTL_CONFIG_DIR"

// ConfigDir is where config, session and state live. EXPENSECTL_CONFIG_DIR
// overrides it, which keeps tests away from the real home directory.
func ConfigDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(envConfigDir)); v != "" {
		return ExpandPath(v)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".expensectl"), nil
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(out), nil
}
