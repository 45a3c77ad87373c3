package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned by AcquirePID when another bar holds the
// lock.
var ErrAlreadyRunning = errors.New("hydebar already running")

// PIDFile is a held single-instance lock. The kernel drops the flock when
// the process exits, so a file left behind by a crash never blocks a new
// bar.
type PIDFile struct {
	path string
	f    *os.File
}

// AcquirePID locks path and writes the current pid into it. If another
// open file description holds the lock the error wraps ErrAlreadyRunning
// and names the holder when its pid is readable.
func AcquirePID(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create runtime directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, rerr := ReadPID(path); rerr == nil {
				return nil, fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("lock PID file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return &PIDFile{path: path, f: f}, nil
}

// Path returns the locked file's path.
func (p *PIDFile) Path() string { return p.path }

// Release removes the file and drops the lock. Calling it twice is a no-op.
func (p *PIDFile) Release() error {
	if p.f == nil {
		return nil
	}
	// Remove while still locked so a starting bar cannot lock the old inode.
	err := os.Remove(p.path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	cerr := p.f.Close()
	p.f = nil
	if err != nil {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return cerr
}

// ReadPID parses the pid stored at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID file: %w", err)
	}
	return pid, nil
}
