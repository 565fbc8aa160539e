package kvsql

import "testing"

func Test_CacheNegativeLookupIsAuthoritative(t *testing.T) {
	c := newTxCache()
	if _, ok := c.get("a"); ok {
		t.Error("get on empty cache, got = hit, want = miss.")
	}
	e := c.setRead("a", "", false)
	if e.present() {
		t.Error("negative entry present, got = true, want = false.")
	}
	e2, ok := c.get("a")
	if !ok || e2.present() {
		t.Errorf("cached negative lookup, got = (%v, %v), want = hit and absent.", e2, ok)
	}
	if len(c.dirtyEntries()) != 0 {
		t.Error("clean reads appeared in dirty set.")
	}
}

func Test_CacheLastWritePerKeyWins(t *testing.T) {
	c := newTxCache()
	c.setRead("a", `{"x":0}`, true)
	c.stagePut("a", `{"x":1}`)
	c.stagePut("a", `{"x":2}`)
	c.stagePut("b", `{"y":1}`)
	c.stageDelete("b")

	dirty := c.dirtyEntries()
	if len(dirty) != 2 {
		t.Fatalf("dirty entry count, got = %d, want = 2.", len(dirty))
	}
	// Sorted by key.
	if dirty[0].Key != "a" || dirty[1].Key != "b" {
		t.Errorf("dirty entry order, got = [%s %s], want = [a b].", dirty[0].Key, dirty[1].Key)
	}
	if dirty[0].Value.value != `{"x":2}` || dirty[0].Value.tombstone {
		t.Errorf("entry a, got = %+v, want = staged {\"x\":2}.", dirty[0].Value)
	}
	if !dirty[1].Value.tombstone {
		t.Errorf("entry b, got = %+v, want = tombstone.", dirty[1].Value)
	}
}

func Test_CacheDeleteThenPutRevives(t *testing.T) {
	c := newTxCache()
	c.stageDelete("a")
	c.stagePut("a", `1`)
	e, _ := c.get("a")
	if !e.present() || !e.dirty {
		t.Errorf("revived entry, got = %+v, want = present and dirty.", e)
	}
}

func Test_CacheClear(t *testing.T) {
	c := newTxCache()
	c.stagePut("a", `1`)
	c.clear()
	if _, ok := c.get("a"); ok {
		t.Error("get after clear, got = hit, want = miss.")
	}
}
