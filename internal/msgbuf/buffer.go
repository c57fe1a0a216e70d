// Package msgbuf implements the fixed-capacity per-connection framing
// buffer described in spec §4.2. It reassembles a byte stream into
// CRLF-terminated frames without any allocation on the append path,
// modelled on the stack-like buffer in original_source/src/buffer.rs
// but corrected per the spec's redesign notes: Extract never flushes
// partial, CRLF-less data as though it were a complete frame.
package msgbuf

import "github.com/harrow-ircd/harrowd/internal/ircerr"

// Capacity is the maximum number of bytes a Buffer can hold, matching
// the RFC 2812 512-octet message limit.
const Capacity = 512

// Buffer is a fixed 512-byte accumulator with a write index. The zero
// value is ready to use.
type Buffer struct {
	data  [Capacity]byte
	index int
}

// Append copies b into the buffer. It fails with ircerr.ErrOverflow if
// there is not enough room; in that case nothing is written (no partial
// writes).
func (b *Buffer) Append(p []byte) error {
	if b.index+len(p) > Capacity {
		return ircerr.ErrOverflow
	}

	copy(b.data[b.index:], p)
	b.index += len(p)
	return nil
}

// Extract scans for the first CRLF and, if found, returns the frame
// including the terminating CRLF, shifting any remaining bytes down to
// the start of the buffer. If no CRLF is present it returns (nil,
// false) regardless of how much unterminated data is buffered — the
// caller retries once more bytes arrive. This differs deliberately from
// the original Rust implementation, which flushed the unterminated
// remainder as if it were a frame; spec §4.2 requires the buffer never
// emit a frame that wasn't actually CRLF-terminated.
func (b *Buffer) Extract() ([]byte, bool) {
	if b.index == 0 {
		return nil, false
	}

	eol := b.findCRLF()
	if eol == -1 {
		return nil, false
	}

	frame := make([]byte, eol+2)
	copy(frame, b.data[:eol+2])

	remaining := b.index - (eol + 2)
	copy(b.data[:remaining], b.data[eol+2:b.index])
	b.index = remaining

	return frame, true
}

// findCRLF returns the index of the CR in the first CRLF pair found in
// the buffered prefix, or -1 if none is present yet.
func (b *Buffer) findCRLF() int {
	for i := 1; i < b.index; i++ {
		if b.data[i-1] == '\r' && b.data[i] == '\n' {
			return i - 1
		}
	}
	return -1
}

// Len reports how many unconsumed bytes are currently buffered.
func (b *Buffer) Len() int {
	return b.index
}
