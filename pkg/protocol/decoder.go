package protocol

import "encoding/binary"

// Mode is the decoder's position within the current frame.
type Mode int

const (
	// AwaitingLength means the next bytes are a length prefix.
	AwaitingLength Mode = iota
	// AwaitingPayload means a length prefix was read and its payload is being collected.
	AwaitingPayload
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case AwaitingLength:
		return "AWAITING_LENGTH"
	case AwaitingPayload:
		return "AWAITING_PAYLOAD"
	default:
		return "UNKNOWN"
	}
}

// Decoder reassembles frames from an arbitrarily chunked byte stream.
//
// Bytes that do not yet form a complete frame stay in the accumulation buffer
// until more data arrives. No upper bound is placed on the announced length: a
// corrupt or hostile prefix makes the decoder wait, and buffer, indefinitely.
// Buffered reports how much is being held so callers can watch for that.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	mode     Mode
	expected uint32
	buf      []byte
	onFrame  func(payload []byte)
}

// NewDecoder creates a Decoder that calls onFrame once per complete frame.
func NewDecoder(onFrame func(payload []byte)) *Decoder {
	return &Decoder{onFrame: onFrame}
}

// Push appends chunk to the accumulation buffer and emits every frame that can
// now be completed, in arrival order, before returning.
//
// The payload passed to onFrame is a fresh slice owned by the callee.
func (d *Decoder) Push(chunk []byte) {
	d.buf = append(d.buf, chunk...)

	for {
		switch d.mode {
		case AwaitingLength:
			if len(d.buf) < HeaderLen {
				d.compact()
				return
			}
			d.expected = binary.BigEndian.Uint32(d.buf[:HeaderLen])
			d.buf = d.buf[HeaderLen:]
			d.mode = AwaitingPayload

		case AwaitingPayload:
			if uint64(len(d.buf)) < uint64(d.expected) {
				d.compact()
				return
			}
			payload := make([]byte, d.expected)
			copy(payload, d.buf)
			d.buf = d.buf[d.expected:]
			d.expected = 0
			d.mode = AwaitingLength

			if d.onFrame != nil {
				d.onFrame(payload)
			}
		}
	}
}

// compact drops the reference to a fully consumed buffer so its backing array can
// be collected between pushes.
func (d *Decoder) compact() {
	if len(d.buf) == 0 {
		d.buf = nil
	}
}

// Mode returns the current decoder mode.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// Expected returns the payload length announced by the last prefix. It is only
// meaningful in AwaitingPayload and is 0 otherwise.
func (d *Decoder) Expected() uint32 {
	return d.expected
}

// Buffered returns the number of received bytes not yet consumed into a frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
