package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file inside a session directory.
const FileName = "LOCK"

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID     int
	Session string
	Since   time.Time
}

// HeldError is returned when another process holds the session lock.
type HeldError struct {
	Holder Holder
	Path   string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("session %q lock held by PID %d since %s (%s)",
		e.Holder.Session, e.Holder.PID, e.Holder.Since.Format(time.RFC3339), e.Path)
}

// Lock represents an acquired session lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock on the session directory and records the
// caller as holder. Returns *HeldError if another process already holds it.
func Acquire(sessionDir, session string) (*Lock, error) {
	lockPath := filepath.Join(sessionDir, FileName)

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(lockPath)
		_ = f.Close()
		return nil, &HeldError{Holder: parse(string(data)), Path: lockPath}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	h := Holder{PID: os.Getpid(), Session: session, Since: time.Now().UTC()}
	if _, err := f.WriteString(format(h)); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Read returns the holder recorded in the session's lock file without
// taking the lock. It fails if no lock file exists.
func Read(sessionDir string) (Holder, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, FileName))
	if err != nil {
		return Holder{}, err
	}
	return parse(string(data)), nil
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove lock file before closing to avoid stale files.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func format(h Holder) string {
	return fmt.Sprintf("pid=%d\nsession=%s\ntime=%s\n", h.PID, h.Session, h.Since.Format(time.RFC3339))
}

func parse(content string) Holder {
	var h Holder
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "session":
			h.Session = value
		case "time":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h
}
