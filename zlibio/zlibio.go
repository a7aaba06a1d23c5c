// Package zlibio wraps compress/zlib to give the packfile decoder the one
// primitive it actually needs: inflating a zlib stream whose compressed
// length is not known ahead of time, while reporting exactly how many
// compressed bytes were consumed.
package zlibio

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"

	"golang.org/x/xerrors"
)

// Kind classifies an InflateStream failure.
type Kind int

const (
	// KindNone is the zero value, meaning no error occurred.
	KindNone Kind = iota
	// KindNeedMoreInput means data ended before a complete zlib stream
	// could be read. The caller should supply more bytes and retry.
	KindNeedMoreInput
	// KindFormatError means data does not contain a valid zlib stream
	// (bad header, corrupt deflate block).
	KindFormatError
	// KindChecksumMismatch means the stream decoded cleanly but its
	// trailing Adler-32 checksum did not match the decompressed bytes.
	KindChecksumMismatch
)

// Error is returned by InflateStream on failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(err error) *Error {
	switch {
	case errors.Is(err, zlib.ErrChecksum):
		return &Error{Kind: KindChecksumMismatch, Err: err}
	case errors.Is(err, zlib.ErrHeader):
		return &Error{Kind: KindFormatError, Err: err}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &Error{Kind: KindNeedMoreInput, Err: err}
	default:
		return &Error{Kind: KindFormatError, Err: err}
	}
}

// DeflateAll compresses content in one shot, using the default
// compression level. It is used for loose-object writes, which never
// need to report bytes consumed.
func DeflateAll(content []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zlib.NewWriter(buf)

	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return nil, xerrors.Errorf("could not deflate content: %w", err)
	}
	// Close flushes the final deflate block and the Adler-32 trailer, so
	// it must run before buf is read.
	if err := w.Close(); err != nil {
		return nil, xerrors.Errorf("could not finish deflate stream: %w", err)
	}
	return buf.Bytes(), nil
}

// InflateStream decompresses the zlib stream that begins at the start of
// data. data may contain trailing bytes belonging to whatever comes next
// in the enclosing stream (e.g. the next object in a packfile) - those
// bytes are never touched.
//
// The trick that makes this possible without knowing the compressed
// length ahead of time: data is wrapped in a *bytes.Reader, which
// implements io.ByteReader. compress/flate only wraps its source in its
// own buffered reader when the source does NOT already implement
// io.ByteReader; since bytes.Reader does, flate (and therefore zlib)
// reads from it one byte at a time with no read-ahead, so the reader's
// position after a successful decode is exactly the number of
// compressed bytes consumed.
func InflateStream(data []byte) (decompressed []byte, consumed int, err error) {
	src := bytes.NewReader(data)

	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, 0, classify(err)
	}

	// The final Read inside io.Copy reads and validates the trailing
	// Adler-32 checksum, consuming the last 4 bytes of the stream from
	// src, so once it returns src's position marks the end of the stream.
	out := new(bytes.Buffer)
	if _, err = io.Copy(out, zr); err != nil {
		return nil, 0, classify(err)
	}

	if err = zr.Close(); err != nil {
		return nil, 0, classify(err)
	}

	consumed = len(data) - src.Len()
	return out.Bytes(), consumed, nil
}
