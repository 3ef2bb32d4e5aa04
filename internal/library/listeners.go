package library

import "sync"

// Listener receives catalogue lifecycle events. Callbacks are invoked on a
// dedicated goroutine per event and must not block on the manager.
type Listener interface {
	ScanComplete()
	WarmupComplete(updated int)
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil fields
// are skipped.
type ListenerFuncs struct {
	OnScanComplete   func()
	OnWarmupComplete func(updated int)
}

func (l ListenerFuncs) ScanComplete() {
	if l.OnScanComplete != nil {
		l.OnScanComplete()
	}
}

func (l ListenerFuncs) WarmupComplete(updated int) {
	if l.OnWarmupComplete != nil {
		l.OnWarmupComplete(updated)
	}
}

// ListenerHandle identifies a registration for later removal.
type ListenerHandle int64

type listenerTable struct {
	mu   sync.Mutex
	next ListenerHandle
	set  map[ListenerHandle]Listener
}

func (t *listenerTable) add(l Listener) ListenerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.set == nil {
		t.set = make(map[ListenerHandle]Listener)
	}
	t.next++
	t.set[t.next] = l
	return t.next
}

func (t *listenerTable) remove(h ListenerHandle) {
	t.mu.Lock()
	delete(t.set, h)
	t.mu.Unlock()
}

func (t *listenerTable) snapshot() []Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Listener, 0, len(t.set))
	for _, l := range t.set {
		out = append(out, l)
	}
	return out
}

func (t *listenerTable) notifyScanComplete() {
	for _, l := range t.snapshot() {
		go l.ScanComplete()
	}
}

func (t *listenerTable) notifyWarmupComplete(updated int) {
	for _, l := range t.snapshot() {
		go l.WarmupComplete(updated)
	}
}
