package stream

import "strings"

// byteBuffer reassembles UTF-8 text from arbitrarily split byte chunks.
// Transport chunking does not respect code point boundaries, so a multi-byte
// sequence may arrive across several reads; the buffer holds the incomplete
// trailing sequence (at most 3 bytes) until the rest arrives.
type byteBuffer struct {
	// pending holds the trailing bytes of an incomplete code point.
	pending []byte
}

// Decode appends chunk to any pending bytes and returns the longest prefix
// that ends on a code point boundary. The remainder (0-3 bytes) is retained
// for the next call.
func (b *byteBuffer) Decode(chunk []byte) string {
	if len(b.pending) == 0 && len(chunk) == 0 {
		return ""
	}
	buf := append(b.pending, chunk...)
	keep := incompleteTailLen(buf)
	if keep == 0 {
		b.pending = nil
		return string(buf)
	}
	decoded := string(buf[:len(buf)-keep])
	b.pending = append([]byte(nil), buf[len(buf)-keep:]...)
	return decoded
}

// Flush decodes whatever is still buffered, substituting the Unicode
// replacement character for an incomplete trailing sequence, and clears
// state. Truncated transports must not crash the consumer.
func (b *byteBuffer) Flush() string {
	if len(b.pending) == 0 {
		return ""
	}
	decoded := strings.ToValidUTF8(string(b.pending), "�")
	b.pending = nil
	return decoded
}

// Reset clears all buffered state for reuse.
func (b *byteBuffer) Reset() {
	b.pending = nil
}

// incompleteTailLen reports how many trailing bytes of buf form the start of
// a multi-byte UTF-8 sequence whose remaining bytes have not arrived yet.
// It scans backward at most 3 bytes for a leading byte and compares the
// sequence length it announces against the bytes actually present.
func incompleteTailLen(buf []byte) int {
	for back := 1; back <= 3 && back <= len(buf); back++ {
		lead := buf[len(buf)-back]
		if lead&0xC0 == 0x80 {
			// Continuation byte; keep scanning for the leading byte.
			continue
		}
		var size int
		switch {
		case lead&0x80 == 0x00:
			size = 1
		case lead&0xE0 == 0xC0:
			size = 2
		case lead&0xF0 == 0xE0:
			size = 3
		case lead&0xF8 == 0xF0:
			size = 4
		default:
			// Invalid leading byte; nothing to wait for.
			return 0
		}
		if size > back {
			return back
		}
		return 0
	}
	// Three trailing continuation bytes with no leading byte in reach can
	// never be completed by future input.
	return 0
}
