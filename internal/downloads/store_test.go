package downloads

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	store := NewStore(path, nil)

	tasks := []Task{
		NewTask("aaaaaaaaaaa1", "One", "A", "", "http://h/1", "/dl/1.mp3"),
		NewTask("aaaaaaaaaaa2", "Two", "A", "alb", "http://h/2", "/dl/2.mp3"),
	}
	tasks[1].Status = StatusCompleted
	if err := store.Save(tasks); err != nil {
		t.Fatal(err)
	}

	loaded := NewStore(path, nil).Load()
	if len(loaded) != 2 {
		t.Fatalf("loaded %d tasks, want 2", len(loaded))
	}
	if loaded[0].ID != tasks[0].ID || loaded[1].Status != StatusCompleted {
		t.Errorf("round trip mangled tasks: %+v", loaded)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"), nil)
	if tasks := store.Load(); len(tasks) != 0 {
		t.Errorf("missing file loaded %d tasks", len(tasks))
	}
}

func TestStore_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if tasks := NewStore(path, nil).Load(); len(tasks) != 0 {
		t.Errorf("corrupt file loaded %d tasks", len(tasks))
	}
}

func TestStore_InFlightComesBackPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	store := NewStore(path, nil)

	task := NewTask("aaaaaaaaaaa1", "One", "A", "", "http://h/1", "/dl/1.mp3")
	task.Status = StatusDownloading
	task.BytesReceived = 4096
	if err := store.Save([]Task{task}); err != nil {
		t.Fatal(err)
	}

	loaded := store.Load()
	if loaded[0].Status != StatusPending || loaded[0].BytesReceived != 0 {
		t.Errorf("in-flight task restored as %s with %d bytes, want pending/0",
			loaded[0].Status, loaded[0].BytesReceived)
	}
}

func TestTaskID(t *testing.T) {
	if got := TaskID(domain.SongID("abc123")); got != "song_abc123" {
		t.Errorf("TaskID = %q, want song_abc123", got)
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusDownloading},
		{StatusPending, StatusCancelled},
		{StatusDownloading, StatusPaused},
		{StatusDownloading, StatusCompleted},
		{StatusDownloading, StatusFailed},
		{StatusDownloading, StatusCancelled},
		{StatusPaused, StatusPending},
		{StatusPaused, StatusDownloading},
		{StatusPaused, StatusCancelled},
		{StatusFailed, StatusPending},
		{StatusFailed, StatusCancelled},
	}
	for _, tt := range allowed {
		if !tt.from.CanTransition(tt.to) {
			t.Errorf("%s -> %s rejected", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusCompleted, StatusPending},
		{StatusCancelled, StatusDownloading},
		{StatusPending, StatusCompleted},
		{StatusPaused, StatusFailed},
	}
	for _, tt := range denied {
		if tt.from.CanTransition(tt.to) {
			t.Errorf("%s -> %s allowed", tt.from, tt.to)
		}
	}
	if !StatusCompleted.Terminal() || StatusPaused.Terminal() {
		t.Error("terminal classification wrong")
	}
}
