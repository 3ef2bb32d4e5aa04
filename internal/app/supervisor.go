package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// ErrNotRunning is returned by supervisor operations that need a live
// daemonized server.
var ErrNotRunning = errors.New("server is not running")

// WritePIDFile records pid at path for later stop/status commands.
func WritePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPIDFile returns the recorded process ID, or ErrNotRunning when the
// file is missing or unreadable.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, ErrNotRunning
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrNotRunning
	}
	return pid, nil
}

// RemovePIDFile deletes the PID file; a missing file is not an error.
func RemovePIDFile(path string) {
	_ = os.Remove(path)
}

// ServerPID returns the PID of the recorded server process if it is still
// alive. A stale PID file (process gone) reports ErrNotRunning.
func ServerPID(path string) (int, error) {
	pid, err := ReadPIDFile(path)
	if err != nil {
		return 0, err
	}
	if !processAlive(pid) {
		return 0, ErrNotRunning
	}
	return pid, nil
}

// StopServer signals the recorded server process to shut down and removes
// the PID file once the signal is delivered.
func StopServer(path string) error {
	pid, err := ServerPID(path)
	if err != nil {
		return err
	}
	if err := signalStop(pid); err != nil {
		return err
	}
	RemovePIDFile(path)
	return nil
}
