// sensor.go - telemetry bus: last-value cell + broadcast (C7)

// Copyright (C) 2018  Steve Merrony

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package dronecore

import (
	"sync"

	uuid "github.com/satori/go.uuid"
)

// SubscriptionID identifies a live subscription on a Channel. Cancellation
// is Unsubscribe(id) rather than invoking a closure, so a caller that loses
// track of its handle cannot accidentally double-cancel someone else's.
type SubscriptionID uuid.UUID

// Channel is a last-value cell plus a broadcast of changes, written by the
// single decoder that owns it and read by any number of subscribers. It is
// not a general pub/sub framework - just enough fan-out to get a decoded
// value from the log-decode thread to whoever is interested, in order.
type Channel struct {
	mu        sync.Mutex
	dedup     bool
	hasValue  bool
	value     interface{}
	equal     func(a, b interface{}) bool
	observers map[SubscriptionID]func(interface{})
}

// NewChannel returns a raw channel: every write is published, regardless
// of whether it equals the previous value.
func NewChannel() *Channel {
	return &Channel{observers: make(map[SubscriptionID]func(interface{}))}
}

// NewDedupChannel returns a channel that skips publishing a write equal to
// the current last value, per eq.
func NewDedupChannel(eq func(a, b interface{}) bool) *Channel {
	return &Channel{dedup: true, equal: eq, observers: make(map[SubscriptionID]func(interface{}))}
}

// Write publishes v. Called only by the channel's owning decoder; delivery
// to observers happens synchronously on the calling goroutine, so observer
// functions must not block.
func (c *Channel) Write(v interface{}) {
	c.mu.Lock()
	if c.dedup && c.hasValue && c.equal(c.value, v) {
		c.mu.Unlock()
		return
	}
	c.value = v
	c.hasValue = true
	fns := make([]func(interface{}), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers fn for every future publish and returns a handle for
// cancellation. fn is not invoked for the current last value; callers that
// want it should call Last first.
func (c *Channel) Subscribe(fn func(interface{})) SubscriptionID {
	id := SubscriptionID(uuid.NewV4())
	c.mu.Lock()
	c.observers[id] = fn
	c.mu.Unlock()
	return id
}

// Unsubscribe cancels a subscription. It is idempotent: cancelling an
// already-cancelled or unknown id is a no-op.
func (c *Channel) Unsubscribe(id SubscriptionID) {
	c.mu.Lock()
	delete(c.observers, id)
	c.mu.Unlock()
}

// Last returns the current last value and whether one has ever been written.
func (c *Channel) Last() (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.hasValue
}
