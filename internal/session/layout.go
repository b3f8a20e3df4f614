package session

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the stash home directory.
const HomeEnv = "STASH_HOME"

// Home returns $STASH_HOME, or ~/.stash.
func Home() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stash")
}

// ConfigPath returns the config file shared by every session.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// Layout locates the files a session keeps on disk. Everything lives under
// Dir, which only the daemon holding the session lock writes to.
type Layout struct {
	Name string
	Dir  string
}

// LayoutFor returns the layout of the named session under Home.
func LayoutFor(name string) Layout {
	return Layout{Name: name, Dir: filepath.Join(Home(), "sessions", name)}
}

// Socket is the daemon's gRPC socket.
func (l Layout) Socket() string { return filepath.Join(l.Dir, "daemon.sock") }

// BackendDB is the local backend database.
func (l Layout) BackendDB() string { return filepath.Join(l.Dir, "backend.db") }

func (l Layout) Logs() string { return filepath.Join(l.Dir, "logs") }

func (l Layout) Log() string { return filepath.Join(l.Logs(), "stashd.log") }

// Ensure creates the session directories, private to the user.
func (l Layout) Ensure() error {
	for _, d := range []string{l.Dir, l.Logs()} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
