// Package pktline implements the length-prefixed framing used by Git's
// Smart HTTP protocol: each frame is a 4-hex-digit length (including
// itself) followed by length-4 bytes of payload, with a length of
// "0000" meaning a flush packet.
package pktline

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

const (
	// headerSize is the length of the hex length prefix.
	headerSize = 4
	// MaxDataSize is the largest payload a single pkt-line can carry.
	MaxDataSize = 65516
)

// Flush is the literal encoding of a flush packet.
var Flush = []byte("0000")

// ErrInvalidFrame is returned when a pkt-line's declared length is
// malformed or exceeds the data actually available.
var ErrInvalidFrame = errors.New("invalid pkt-line frame")

// ErrPayloadTooLarge is returned by Encode when payload exceeds MaxDataSize.
var ErrPayloadTooLarge = errors.New("pkt-line payload too large")

// Encode returns payload framed as a single pkt-line: a 4-hex-digit
// length prefix (counting itself) followed by payload. An empty payload
// still produces a non-flush pkt-line ("0004"); use Flush directly to
// emit a flush packet.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxDataSize {
		return nil, xerrors.Errorf("payload is %d bytes: %w", len(payload), ErrPayloadTooLarge)
	}
	out := make([]byte, 0, headerSize+len(payload))
	out = append(out, fmt.Sprintf("%04x", headerSize+len(payload))...)
	out = append(out, payload...)
	return out, nil
}

// EncodeString is a convenience wrapper around Encode for string payloads.
func EncodeString(payload string) ([]byte, error) {
	return Encode([]byte(payload))
}

// Frame is one decoded pkt-line: either a flush (Data is nil) or a data
// frame carrying Data.
type Frame struct {
	Flush bool
	Data  []byte
}

// Reader decodes a stream of pkt-lines from an in-memory buffer. The
// Smart HTTP responses this client deals with (ref advertisement,
// upload-pack side-band stream) are always read fully into memory
// before framing, so a slice-based reader keeps the decode logic simple
// and allocation-free beyond the frames themselves.
type Reader struct {
	data []byte
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Next decodes the next frame. It returns (Frame{}, false, nil) when the
// buffer is exhausted with nothing left to decode, (frame, true, nil) on
// success, and a non-nil error on a malformed frame.
func (r *Reader) Next() (frame Frame, ok bool, err error) {
	if len(r.data) == 0 {
		return Frame{}, false, nil
	}
	if len(r.data) < headerSize {
		return Frame{}, false, xerrors.Errorf("truncated length prefix: %w", ErrInvalidFrame)
	}

	lengthHex := r.data[:headerSize]
	var length int
	if _, err := fmt.Sscanf(string(lengthHex), "%04x", &length); err != nil {
		return Frame{}, false, xerrors.Errorf("invalid length %q: %w", lengthHex, ErrInvalidFrame)
	}

	if length == 0 {
		r.data = r.data[headerSize:]
		return Frame{Flush: true}, true, nil
	}
	if length < headerSize {
		return Frame{}, false, xerrors.Errorf("length %d smaller than header: %w", length, ErrInvalidFrame)
	}
	if length > len(r.data) {
		return Frame{}, false, xerrors.Errorf("declared length %d exceeds remaining input (%d): %w", length, len(r.data), ErrInvalidFrame)
	}

	payload := r.data[headerSize:length]
	r.data = r.data[length:]
	return Frame{Data: payload}, true, nil
}

// Remaining returns the number of bytes not yet consumed by Next.
func (r *Reader) Remaining() int {
	return len(r.data)
}

// ReadAll decodes every frame remaining in the reader.
func (r *Reader) ReadAll() ([]Frame, error) {
	var frames []Frame
	for {
		f, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return frames, nil
		}
		frames = append(frames, f)
	}
}

// Join concatenates the Data of every non-flush frame in frames.
func Join(frames []Frame) []byte {
	buf := new(bytes.Buffer)
	for _, f := range frames {
		if !f.Flush {
			buf.Write(f.Data)
		}
	}
	return buf.Bytes()
}
