package ai

import "testing"

func TestCollectorAddEntryOverwritesLatest(t *testing.T) {
	c := NewCollector()
	c.AddEntry(BlockEntry{Key: "summary", Prompt: "first"})
	c.AddEntry(BlockEntry{Key: "summary", Prompt: "second"})

	entry, ok := c.Entry("summary")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if entry.Prompt != "second" {
		t.Errorf("Prompt = %q, want %q", entry.Prompt, "second")
	}
	if len(c.Entries()) != 1 {
		t.Errorf("Entries() len = %d, want 1 (overwrite must not duplicate order)", len(c.Entries()))
	}
}

func TestCollectorEntriesPreserveFirstSeenOrder(t *testing.T) {
	c := NewCollector()
	c.AddEntry(BlockEntry{Key: "b"})
	c.AddEntry(BlockEntry{Key: "a"})
	c.AddEntry(BlockEntry{Key: "b"})

	keys := []string{}
	for _, e := range c.Entries() {
		keys = append(keys, e.Key)
	}
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("Entries() order = %v, want [b a]", keys)
	}
}

func TestCollectorReset(t *testing.T) {
	c := NewCollector()
	c.SetCollectMode(true)
	c.AddEntry(BlockEntry{Key: "x"})
	c.AddGlobalContext("ctx")

	c.Reset()

	if c.CollectMode() {
		t.Error("CollectMode should be false after Reset")
	}
	if len(c.Entries()) != 0 {
		t.Error("Entries should be empty after Reset")
	}
	if len(c.GlobalContexts()) != 0 {
		t.Error("GlobalContexts should be empty after Reset")
	}
}

func TestCollectorHas(t *testing.T) {
	c := NewCollector()
	if c.Has("missing") {
		t.Error("Has(missing) = true, want false")
	}
	c.AddEntry(BlockEntry{Key: "present"})
	if !c.Has("present") {
		t.Error("Has(present) = false, want true")
	}
}
