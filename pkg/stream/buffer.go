// Package stream contains the per-turn streaming pipeline: the word-boundary
// content buffer, the client wire encoder, and the orchestrator state machine
// that ties provider deltas, tool execution and frame emission together.
package stream

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContentBuffer accumulates raw text deltas and releases them only at
// whitespace boundaries, so the client never receives a word split across
// frames. Concatenating everything returned by Write and the final Flush
// reproduces the input byte-for-byte.
type ContentBuffer struct {
	held string
}

// Write appends a delta and returns any text that is now safe to emit.
// A delta ending in whitespace is held whole: the next word may be released
// together with it. A delta ending mid-word triggers release of all held
// content through the last whitespace boundary, keeping only the trailing
// partial word.
func (b *ContentBuffer) Write(delta string) string {
	if delta == "" {
		return ""
	}

	if endsInSpace(delta) {
		b.held += delta
		return ""
	}

	if b.held == "" {
		b.held = delta
		return ""
	}

	if endsInSpace(b.held) {
		out := b.held
		b.held = delta
		return out
	}

	if i := strings.LastIndexFunc(b.held, unicode.IsSpace); i >= 0 {
		_, size := utf8.DecodeRuneInString(b.held[i:])
		out := b.held[:i+size]
		b.held = b.held[i+size:] + delta
		return out
	}

	b.held += delta
	return ""
}

// Flush returns whatever remains held, which may end mid-word. Called once
// at end of stream, before the terminal frame.
func (b *ContentBuffer) Flush() string {
	out := b.held
	b.held = ""
	return out
}

func endsInSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}
