package sideband_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tambling/gitgo/pktline"
	"github.com/tambling/gitgo/sideband"
)

func frame(t *testing.T, band byte, payload string) []byte {
	t.Helper()
	encoded, err := pktline.Encode(append([]byte{band}, payload...))
	require.NoError(t, err)
	return encoded
}

func TestDemuxConcatenatesPackBand(t *testing.T) {
	t.Parallel()

	stream := append(append([]byte{}, frame(t, sideband.BandPack, "PACK")...), frame(t, sideband.BandPack, "...rest...")...)
	stream = append(stream, pktline.Flush...)

	pack, err := sideband.Demux(stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "PACK...rest...", string(pack))
}

func TestDemuxForwardsProgress(t *testing.T) {
	t.Parallel()

	stream := append(append([]byte{}, frame(t, sideband.BandProgress, "Counting objects: 1\n")...), frame(t, sideband.BandPack, "PACK")...)

	var progress bytes.Buffer
	pack, err := sideband.Demux(stream, &progress)
	require.NoError(t, err)
	assert.Equal(t, "PACK", string(pack))
	assert.Equal(t, "Counting objects: 1\n", progress.String())
}

func TestDemuxSurfacesErrorBand(t *testing.T) {
	t.Parallel()

	stream := frame(t, sideband.BandError, "remote rejected the request")
	_, err := sideband.Demux(stream, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sideband.ErrRemote)
	assert.Contains(t, err.Error(), "remote rejected the request")
}

func TestDemuxRejectsUnknownBand(t *testing.T) {
	t.Parallel()

	stream := frame(t, 9, "huh")
	_, err := sideband.Demux(stream, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sideband.ErrUnknownBand)
}
