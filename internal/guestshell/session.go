// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/guestshell/guestshell/internal/bridge"
)

// Session is one logical caller's shell context. The working directory
// lineage survives across commands; everything else is per command.
type Session struct {
	// Tag is the caller-chosen identifier.
	Tag string

	// WorkDir is the guest directory holding this session's transport
	// files. Allocated once, never reused after destruction.
	WorkDir string

	// Cwd is the last working directory observed after a completed
	// command. Starts at "/".
	Cwd string
}

// cwdFile returns the guest path of the session's persistent cwd file. The
// guest rewrites it after every completed command.
func (s *Session) cwdFile() string {
	return s.WorkDir + "/cwd"
}

// sessionRegistry maps session tags to their guest-side state. It is the one
// shared mutable structure all transports consult; mutations are serialized
// by a plain mutex, which is plenty given the command-driven operation rate.
type sessionRegistry struct {
	bridge *bridge.Bridge

	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionRegistry(b *bridge.Bridge) *sessionRegistry {
	return &sessionRegistry{
		bridge:   b,
		sessions: make(map[string]*Session),
	}
}

// getOrCreate returns a copy of the session for the tag, creating it with a
// fresh guest directory on first use.
func (r *sessionRegistry) getOrCreate(tag string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[tag]; ok {
		return *s, nil
	}

	s := &Session{
		Tag:     tag,
		WorkDir: fmt.Sprintf("%s/sh%d", r.bridge.Base(), r.bridge.NextID()),
		Cwd:     "/",
	}

	if err := r.bridge.EnsureDirectory(s.WorkDir); err != nil {
		return Session{}, fmt.Errorf("create session dir: %w", err)
	}

	r.sessions[tag] = s

	slog.Debug("session created",
		slog.String("tag", tag),
		slog.String("workdir", s.WorkDir))

	return *s, nil
}

// lookup returns a copy of the session, if present.
func (r *sessionRegistry) lookup(tag string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[tag]
	if !ok {
		return Session{}, false
	}

	return *s, true
}

// updateCwd records the working directory the guest reported after a
// completed command. Called exactly once per completed command by whichever
// transport ran it. Unknown tags are ignored; the session may have been
// destroyed while the command was in flight.
func (r *sessionRegistry) updateCwd(tag, cwd string) {
	if cwd == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[tag]; ok {
		s.Cwd = cwd
	}
}

// destroy deletes the session's guest directory and drops the registry
// entry. Unknown tags are a no-op.
func (r *sessionRegistry) destroy(tag string) error {
	r.mu.Lock()
	s, ok := r.sessions[tag]
	delete(r.sessions, tag)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	return r.bridge.SendText("rm -rf " + s.WorkDir + "\n")
}
