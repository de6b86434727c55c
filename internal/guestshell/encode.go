// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"fmt"
	"strings"
)

// hexEscape encodes every byte of s as a \xNN escape.
//
// The result is used as a printf format string in the guest. Stream payloads
// and piped stdin must survive two layers of interpretation, the console
// injection and the guest shell's own parsing, and arbitrary bytes (NUL,
// unmatched quotes, newlines) are only unambiguous at both layers when every
// single byte is escaped.
func hexEscape(s string) string {
	var b strings.Builder

	b.Grow(len(s) * 4)

	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, `\x%02x`, s[i])
	}

	return b.String()
}

// shellQuote wraps s in single quotes, escaping embedded single quotes, so
// the guest shell treats it as one literal word.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
