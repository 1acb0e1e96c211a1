// Package ai implements the AI Collector, Prompt Assembler, AI tags,
// and AI Transports behind the two-pass protocol that lets a template
// declare `@ai` blocks whose answers are supplied by an external LLM
// call.
package ai

import "sync"

// BlockEntry is one named answer slot collected during Pass 1.
type BlockEntry struct {
	Key                string
	Contexts           []string
	Prompt             string
	OutputDescription  string
	TypeHint           string
	Examples           []string
	SourceFile         string
}

// Collector is a process-scoped singleton: the template engine's tag
// runtime reaches it without threading extra arguments through every
// compiled template. Concurrent recipe runs in the same process are
// serialized through its mutex rather than scoping the Collector
// per-run (see DESIGN.md).
type Collector struct {
	mu             sync.Mutex
	collectMode    bool
	entries        map[string]*BlockEntry
	order          []string
	globalContexts []string
}

var global = NewCollector()

// Global returns the process-wide Collector instance.
func Global() *Collector { return global }

// NewCollector creates an independent Collector, used by tests that
// want isolation from the process-global instance.
func NewCollector() *Collector {
	return &Collector{entries: map[string]*BlockEntry{}}
}

// Reset clears all collected state. The Engine calls this before each
// recipe run to avoid cross-run leakage.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collectMode = false
	c.entries = map[string]*BlockEntry{}
	c.order = nil
	c.globalContexts = nil
}

// SetCollectMode toggles Pass 1 (true) vs Pass 2 (false).
func (c *Collector) SetCollectMode(collecting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collectMode = collecting
}

// CollectMode reports the current pass.
func (c *Collector) CollectMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collectMode
}

// AddEntry records or overwrites a block entry. A second AddEntry
// with the same key overwrites by design — the latest lexical block
// in the template wins.
func (c *Collector) AddEntry(e BlockEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[e.Key]; !exists {
		c.order = append(c.order, e.Key)
	}
	entry := e
	c.entries[e.Key] = &entry
}

// AddGlobalContext appends a free-standing `@context(...)` block's
// rendered text to the global context list.
func (c *Collector) AddGlobalContext(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalContexts = append(c.globalContexts, text)
}

// Entry returns the entry for key and whether it exists.
func (c *Collector) Entry(key string) (*BlockEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// Has reports whether key was collected.
func (c *Collector) Has(key string) bool {
	_, ok := c.Entry(key)
	return ok
}

// Entries returns all collected entries in first-seen lexical order.
func (c *Collector) Entries() []*BlockEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*BlockEntry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

// GlobalContexts returns the accumulated free-standing context blocks.
func (c *Collector) GlobalContexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.globalContexts))
	copy(out, c.globalContexts)
	return out
}
