// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package serial_test

import (
	"strings"
	"testing"

	"github.com/guestshell/guestshell/internal/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcherRingCap(t *testing.T) {
	w := serial.NewWatcher(8)

	w.Feed([]byte("0123456789abcdef"))
	assert.Equal(t, "89abcdef", string(w.Recent()))

	w.Feed([]byte("XY"))
	assert.Equal(t, "abcdefXY", string(w.Recent()))
}

func TestListenerMarkerInOnePiece(t *testing.T) {
	w := serial.NewWatcher(0)

	l := w.Listen(1, "END-42")
	defer l.Close()

	w.Feed([]byte("some output\nEND-42\ntrailing"))

	select {
	case <-l.Done():
	default:
		t.Fatal("marker not detected")
	}

	assert.Equal(t, "some output\nEND-42\ntrailing", l.Output())
}

func TestListenerMarkerSplitAcrossChunks(t *testing.T) {
	w := serial.NewWatcher(0)

	l := w.Listen(1, "MARKER")
	defer l.Close()

	for _, chunk := range []string{"noise MAR", "K", "ER more"} {
		w.Feed([]byte(chunk))
	}

	select {
	case <-l.Done():
	default:
		t.Fatal("marker split across chunks not detected")
	}
}

func TestListenerOnlySeesBytesAfterRegistration(t *testing.T) {
	w := serial.NewWatcher(0)

	w.Feed([]byte("early MARKER"))

	l := w.Listen(1, "MARKER")
	defer l.Close()

	select {
	case <-l.Done():
		t.Fatal("listener must not see bytes fed before registration")
	default:
	}

	assert.Empty(t, l.Output())
}

func TestWatcherFanOut(t *testing.T) {
	w := serial.NewWatcher(0)

	first := w.Listen(1, "ONE")
	defer first.Close()

	second := w.Listen(2, "TWO")
	defer second.Close()

	w.Feed([]byte("shared ONE bytes"))

	select {
	case <-first.Done():
	default:
		t.Fatal("first listener did not complete")
	}

	select {
	case <-second.Done():
		t.Fatal("second listener completed without its marker")
	default:
	}

	// Both listeners observed the same commingled stream.
	require.Equal(t, first.Output(), second.Output())

	w.Feed([]byte(" and TWO"))

	select {
	case <-second.Done():
	default:
		t.Fatal("second listener did not complete")
	}
}

func TestListenerCloseStopsAccumulation(t *testing.T) {
	w := serial.NewWatcher(0)

	l := w.Listen(7, "NEVER")
	l.Close()

	w.Feed([]byte(strings.Repeat("x", 128)))
	assert.Empty(t, l.Output())

	// Closing twice is fine.
	l.Close()
}
