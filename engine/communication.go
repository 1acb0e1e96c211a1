package engine

import "sync"

// Communication is the run-scoped channel an Action receives alongside
// its declared variables: a simple shared key/value store plus named
// message queues, so one action can hand data to another later in the
// same recipe run without threading it through `exports`. It is safe
// for concurrent use from Parallel's child goroutines.
type Communication struct {
	mu       sync.Mutex
	shared   map[string]interface{}
	channels map[string][]interface{}
}

// NewCommunication builds an empty, run-scoped Communication channel.
func NewCommunication() *Communication {
	return &Communication{
		shared:   map[string]interface{}{},
		channels: map[string][]interface{}{},
	}
}

// SetSharedData stores a value under key, visible to any action in the
// same run (including nested recipes that inherit this Communication).
func (c *Communication) SetSharedData(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shared[key] = value
}

// GetSharedData reads a value previously stored by SetSharedData.
func (c *Communication) GetSharedData(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.shared[key]
	return v, ok
}

// Send appends a message to a named channel's FIFO queue.
func (c *Communication) Send(channel string, message interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = append(c.channels[channel], message)
}

// Receive pops the oldest message from a named channel, reporting
// false when the channel is empty.
func (c *Communication) Receive(channel string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.channels[channel]
	if len(queue) == 0 {
		return nil, false
	}
	msg := queue[0]
	c.channels[channel] = queue[1:]
	return msg, true
}
