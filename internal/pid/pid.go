package pid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/sensorctl/internal/errors"
)

// Lock is a PID file that keeps a second sensorctl off the same sensor.
type Lock struct {
	path string
}

// Path returns the lock file for a bus/address pair inside dir. An empty dir
// means the system temp directory.
func Path(dir, bus string, addr uint16) string {
	if dir == "" {
		dir = os.TempDir()
	}
	if bus == "" {
		bus = "default"
	}

	name := strings.NewReplacer("/", "_", ":", "_").Replace(bus)

	return filepath.Join(dir, fmt.Sprintf("sensorctl-%s-%02x.pid", name, addr))
}

// Acquire writes the current process ID to path. A stale file left by a dead
// process is taken over.
func Acquire(path string) (*Lock, error) {
	errFactory := errors.New()

	if bytes, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil && pid != os.Getpid() && running(pid) {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, struct {
				PID  int
				Path string
			}{pid, path})
		}
	} else if !os.IsNotExist(err) {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &Lock{path: path}, nil
}

func running(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// EPERM still means the process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (l *Lock) Path() string {
	return l.path
}

// Release removes the PID file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
