package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tambling/gitgo/odb"
	"github.com/tambling/gitgo/packfile"
	"github.com/tambling/gitgo/pktline"
	"github.com/tambling/gitgo/refs"
	"github.com/tambling/gitgo/sideband"
	"github.com/tambling/gitgo/transport"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"plain usage error", errors.New("boom"), exitUsageOrIO},
		{"packfile corruption", packfile.ErrChecksumMismatch, exitCorruption},
		{"odb corruption", odb.ErrCorrupt, exitCorruption},
		{"transport protocol error", transport.ErrMalformedAdvertisement, exitCorruption},
		{"ref error", refs.ErrInvalid, exitCorruption},
		{"malformed pkt-line", pktline.ErrInvalidFrame, exitCorruption},
		{"remote side-band error", sideband.ErrRemote, exitCorruption},
		{"unknown side-band code", sideband.ErrUnknownBand, exitCorruption},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, exitCodeFor(tc.err))
		})
	}
}
