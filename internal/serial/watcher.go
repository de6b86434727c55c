// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package serial

import (
	"bytes"
	"sync"
)

// DefaultRingSize is the default capacity of the recent-output ring buffer.
const DefaultRingSize = 64 * 1024

// Watcher is the single subscriber to the guest's raw console byte stream.
//
// It keeps a bounded ring of the most recent bytes and fans every incoming
// byte out to all registered [Listener]s. The raw stream is never exposed to
// more than this one subscriber; everyone else watches through a Listener.
type Watcher struct {
	mu        sync.Mutex
	ring      []byte
	ringSize  int
	listeners map[uint64]*Listener
}

// NewWatcher creates a [Watcher] with the given ring buffer capacity. A
// ringSize of 0 or less selects [DefaultRingSize].
func NewWatcher(ringSize int) *Watcher {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}

	return &Watcher{
		ringSize:  ringSize,
		listeners: make(map[uint64]*Listener),
	}
}

// Feed appends console bytes to the ring buffer and to every registered
// listener that has not found its marker yet. Oldest ring bytes are dropped
// once the capacity is hit.
func (w *Watcher) Feed(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ring = append(w.ring, data...)
	if len(w.ring) > w.ringSize {
		w.ring = w.ring[len(w.ring)-w.ringSize:]
	}

	for _, l := range w.listeners {
		l.feed(data)
	}
}

// Recent returns a copy of the ring buffer contents.
func (w *Watcher) Recent() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	return bytes.Clone(w.ring)
}

// Listen registers a listener for the given marker under the given unique id.
// The listener observes only bytes fed after registration. The caller must
// call [Listener.Close] once done with it.
func (w *Watcher) Listen(id uint64, marker string) *Listener {
	l := &Listener{
		watcher: w,
		id:      id,
		marker:  []byte(marker),
		done:    make(chan struct{}),
	}

	w.mu.Lock()
	w.listeners[id] = l
	w.mu.Unlock()

	return l
}

func (w *Watcher) drop(id uint64) {
	w.mu.Lock()
	delete(w.listeners, id)
	w.mu.Unlock()
}

// Listener accumulates console bytes until its marker substring has been
// observed. It is registered with a [Watcher] and fed by it.
type Listener struct {
	watcher *Watcher
	id      uint64
	marker  []byte

	mu    sync.Mutex
	buf   bytes.Buffer
	found bool

	done chan struct{}
}

// feed is called by the owning watcher with w.mu held, so listener
// registration cannot race with it. The listener's own lock still guards the
// buffer against concurrent [Listener.Output] calls.
func (l *Listener) feed(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(data)

	if !l.found && bytes.Contains(l.buf.Bytes(), l.marker) {
		l.found = true
		close(l.done)
	}
}

// Done returns a channel that is closed once the marker has been observed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Output returns all bytes accumulated so far, including any bytes that
// arrived after the marker.
func (l *Listener) Output() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.String()
}

// Close deregisters the listener from its watcher. It is safe to call
// multiple times.
func (l *Listener) Close() {
	l.watcher.drop(l.id)
}
