// Package sideband demultiplexes the side-band-64k-framed upload-pack
// response into its pack, progress, and error channels.
package sideband

import (
	"bytes"
	"errors"
	"io"

	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/pktline"
)

// Band codes, per the side-band-64k capability.
const (
	BandPack     byte = 1
	BandProgress byte = 2
	BandError    byte = 3
)

// ErrRemote is returned when the remote sends a band-3 (fatal error) packet.
var ErrRemote = errors.New("remote reported an error")

// ErrUnknownBand is returned for a pkt-line whose first byte is not a
// recognized band code.
var ErrUnknownBand = errors.New("unknown side-band code")

// Demux reads a pkt-line-framed, side-band-64k-multiplexed byte stream
// and returns the concatenated band-1 (pack data) payloads. Band-2
// (progress) payloads are written to progress if non-nil, and otherwise
// discarded. A band-3 payload is returned as an error wrapping ErrRemote.
func Demux(data []byte, progress io.Writer) ([]byte, error) {
	r := pktline.NewReader(data)
	pack := new(bytes.Buffer)

	for {
		frame, ok, err := r.Next()
		if err != nil {
			return nil, xerrors.Errorf("could not decode pkt-line: %w", err)
		}
		if !ok {
			break
		}
		if frame.Flush {
			continue
		}
		if len(frame.Data) == 0 {
			return nil, xerrors.Errorf("empty side-band frame: %w", ErrUnknownBand)
		}

		band, payload := frame.Data[0], frame.Data[1:]
		switch band {
		case BandPack:
			pack.Write(payload)
		case BandProgress:
			if progress != nil {
				_, _ = progress.Write(payload)
			}
		case BandError:
			return nil, xerrors.Errorf("%s: %w", string(payload), ErrRemote)
		default:
			return nil, xerrors.Errorf("band %d: %w", band, ErrUnknownBand)
		}
	}

	return pack.Bytes(), nil
}
