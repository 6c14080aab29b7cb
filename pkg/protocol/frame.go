// Package protocol implements the hubify wire format: a stream of frames, each a
// 4-byte unsigned big-endian length prefix followed by that many payload bytes.
//
// Payloads are opaque to this package. The chat layer puts UTF-8 text in them,
// but nothing here depends on that.
package protocol

import "encoding/binary"

const (
	// HeaderLen is the size of the length prefix preceding every payload.
	HeaderLen = 4
	// TokenLen is the size of the random session token a client writes once,
	// immediately after connecting and before its first frame.
	TokenLen = 4
)

// Encode returns payload as a single self-delimited frame of len(payload)+HeaderLen bytes.
//
// The length is written as a uint32 without a range check. Payloads of 2^32 bytes
// or more cannot be represented and must not be passed.
func Encode(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderLen+len(payload)), payload)
}

// AppendFrame appends the frame for payload to dst and returns the extended slice.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}
