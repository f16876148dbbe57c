package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/thermals/internal/errors"
)

const (
	pidFile = "thermals.pid"
)

// Path returns the PID file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, pidFile)
}

// Write writes the current process ID to the PID file in dir. It fails with
// ErrAlreadyRunning while the process recorded there is alive.
func Write(dir string) error {
	errFactory := errors.New()
	pid := os.Getpid()
	path := Path(dir)

	if _, err := os.Stat(path); err == nil {
		// PID file exists, check if the process is running
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		err = process.Signal(syscall.Signal(0))
		if err == nil {
			return errFactory.New(errors.ErrAlreadyRunning)
		}
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file in dir.
func Remove(dir string) error {
	errFactory := errors.New()
	path := Path(dir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
