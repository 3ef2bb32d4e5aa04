package library

import "testing"

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts a

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("b = %d/%v, want 2/true", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestLRU_GetRefreshesRecency(t *testing.T) {
	c := newLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")    // a becomes most recent
	c.Put("c", 3) // evicts b, not a

	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived")
	}
}

func TestLRU_OverwriteKeepsSingleEntry(t *testing.T) {
	c := newLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("a", 5)
	if v, _ := c.Get("a"); v != 5 {
		t.Errorf("a = %d, want 5", v)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestLRU_CachesNilResults(t *testing.T) {
	c := newLRUCache[string, []byte](4)
	c.Put("broken", nil)
	v, ok := c.Get("broken")
	if !ok {
		t.Fatal("nil result not cached")
	}
	if v != nil {
		t.Errorf("cached value = %v, want nil", v)
	}
}

func TestLRU_Remove(t *testing.T) {
	c := newLRUCache[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Remove("a")
	c.Remove("missing") // no-op

	if _, ok := c.Get("a"); ok {
		t.Error("removed entry still present")
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestLRU_Purge(t *testing.T) {
	c := newLRUCache[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("len after purge = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("entry survived purge")
	}
}
