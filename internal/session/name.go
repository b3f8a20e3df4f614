package session

import (
	"fmt"

	"github.com/matheus3301/stash/internal/config"
)

const (
	// DefaultName is used when neither a flag nor the config names a session.
	DefaultName = "main"

	maxNameLen = 64
)

// ResolveName picks the session to act on, the flag winning over the
// config's default_session, and checks it is usable as a directory name.
func ResolveName(flag string) (string, error) {
	name := flag
	if name == "" {
		name = DefaultName
		if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
			name = cfg.DefaultSession
		}
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	return name, nil
}

// checkName accepts 1 to 64 characters of lowercase letters, digits, '-'
// and '_'.
func checkName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("invalid session name %q: length must be 1-%d", name, maxNameLen)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("invalid session name %q: unexpected %q", name, r)
		}
	}
	return nil
}
