// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// dirShare is the host side of the 9p file channel: plain file operations on
// the exported directory. The guest sees the same files under its mount
// point; names are share-relative on both sides.
type dirShare struct {
	root string
}

// ReadFile implements [bridge.FileChannel]. Missing files keep their
// [fs.ErrNotExist] error so the bridge can map them to its NotFound state.
func (s *dirShare) ReadFile(name string) ([]byte, error) {
	path, err := s.securePath(name)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(path)
}

// WriteFile implements [bridge.FileChannel].
func (s *dirShare) WriteFile(name string, data []byte) error {
	path, err := s.securePath(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("share dir: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// securePath resolves a share-relative name, rejecting anything that would
// escape the exported directory.
func (s *dirShare) securePath(name string) (string, error) {
	name = filepath.Clean(filepath.FromSlash(name))

	if name == "." || filepath.IsAbs(name) ||
		name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", name, fs.ErrInvalid)
	}

	return filepath.Join(s.root, name), nil
}
