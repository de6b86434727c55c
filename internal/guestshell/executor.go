// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"sync"
	"time"

	"github.com/guestshell/guestshell/internal/bridge"
)

// Executor runs commands for any number of independent sessions inside the
// one guest the bridge owns. Sessions are created lazily on first use and
// destroyed explicitly.
type Executor struct {
	// ExecTimeout, PipeTimeout and PollInterval tune the synchronous
	// Execute/Pipe facade. Zero values select the defaults.
	ExecTimeout  time.Duration
	PipeTimeout  time.Duration
	PollInterval time.Duration

	bridge   *bridge.Bridge
	sessions *sessionRegistry

	mu    sync.Mutex
	tasks map[uint64]*task
}

// New creates an [Executor] on top of an initialized bridge.
func New(b *bridge.Bridge) *Executor {
	return &Executor{
		bridge:   b,
		sessions: newSessionRegistry(b),
		tasks:    make(map[uint64]*task),
	}
}

// CreateShell creates the session for the tag if it does not exist yet.
// Calling it is optional; every transport creates sessions on demand.
func (e *Executor) CreateShell(tag string) error {
	_, err := e.sessions.getOrCreate(tag)
	return err
}

// DestroyShell deletes the session's guest directory and forgets the
// session. Unknown tags are a no-op.
func (e *Executor) DestroyShell(tag string) error {
	return e.sessions.destroy(tag)
}

// Session returns a copy of the session state for the tag.
func (e *Executor) Session(tag string) (Session, bool) {
	return e.sessions.lookup(tag)
}

// task is the shared bookkeeping for jobs and streams. The stream flag
// selects which file set and cleanup command apply.
type task struct {
	id         uint64
	sessionTag string
	stream     bool

	mu        sync.Mutex
	bytesRead int
	done      bool
	exitCode  *int
	cwd       string

	job jobFiles    // set when !stream
	str streamFiles // set when stream
}

func (t *task) outFile() string {
	if t.stream {
		return t.str.out
	}

	return t.job.out
}

func (e *Executor) addTask(t *task) {
	e.mu.Lock()
	e.tasks[t.id] = t
	e.mu.Unlock()
}

func (e *Executor) getTask(id uint64) (*task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]

	return t, ok
}

// takeTask removes and returns the task if it exists and matches the wanted
// kind. A missing id is not an error to the caller; cleanup is idempotent.
func (e *Executor) takeTask(id uint64, stream bool) (*task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok || t.stream != stream {
		return nil, false
	}

	delete(e.tasks, id)

	return t, true
}

// readNewOutput reads the task's output file and returns the bytes past
// bytesRead, advancing it. Every read error means "no new data this poll";
// the file simply may not exist yet. Must be called with t.mu held.
func (e *Executor) readNewOutput(t *task) string {
	data, err := e.bridge.ReadFile(t.outFile())
	if err != nil {
		return ""
	}

	if len(data) <= t.bytesRead {
		return ""
	}

	delta := data[t.bytesRead:]
	t.bytesRead = len(data)

	return string(delta)
}
