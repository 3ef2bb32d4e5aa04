package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ariamid.pid")
	if err := WritePIDFile(path, 12345); err != nil {
		t.Fatal(err)
	}
	pid, err := ReadPIDFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != 12345 {
		t.Errorf("pid = %d, want 12345", pid)
	}

	RemovePIDFile(path)
	if _, err := ReadPIDFile(path); !errors.Is(err, ErrNotRunning) {
		t.Errorf("after remove: err = %v, want ErrNotRunning", err)
	}
}

func TestReadPIDFileGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ariamid.pid")
	for _, content := range []string{"", "abc", "-7", "0"} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadPIDFile(path); !errors.Is(err, ErrNotRunning) {
			t.Errorf("content %q: err = %v, want ErrNotRunning", content, err)
		}
	}
}

func TestServerPIDLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ariamid.pid")
	if err := WritePIDFile(path, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	pid, err := ServerPID(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestServerPIDStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ariamid.pid")
	// PID near the max is vanishingly unlikely to be a live process.
	if err := WritePIDFile(path, 1<<22-1); err != nil {
		t.Fatal(err)
	}
	if _, err := ServerPID(path); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}
