package pktline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tambling/gitgo/pktline"
)

func TestEncodeFlush(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0000", string(pktline.Flush))
}

func TestEncode(t *testing.T) {
	t.Parallel()

	encoded, err := pktline.EncodeString("done\n")
	require.NoError(t, err)
	assert.Equal(t, "0009done\n", string(encoded))
}

func TestEncodeEmptyPayload(t *testing.T) {
	t.Parallel()

	encoded, err := pktline.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "0004", string(encoded))
}

func TestReaderRoundTrip(t *testing.T) {
	t.Parallel()

	a, err := pktline.EncodeString("want abc\n")
	require.NoError(t, err)
	b, err := pktline.EncodeString("want def\n")
	require.NoError(t, err)

	stream := append(append(append([]byte{}, a...), b...), pktline.Flush...)
	r := pktline.NewReader(stream)
	frames, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, frames, 3)
	assert.Equal(t, "want abc\n", string(frames[0].Data))
	assert.Equal(t, "want def\n", string(frames[1].Data))
	assert.True(t, frames[2].Flush)
}

func TestReaderRejectsLengthBeyondInput(t *testing.T) {
	t.Parallel()

	r := pktline.NewReader([]byte("0010want"))
	_, _, err := r.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, pktline.ErrInvalidFrame)
}

func TestReaderRejectsTruncatedHeader(t *testing.T) {
	t.Parallel()

	r := pktline.NewReader([]byte("00a"))
	_, _, err := r.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, pktline.ErrInvalidFrame)
}

func TestJoin(t *testing.T) {
	t.Parallel()

	frames := []pktline.Frame{
		{Data: []byte("hello ")},
		{Flush: true},
		{Data: []byte("world")},
	}
	assert.Equal(t, "hello world", string(pktline.Join(frames)))
}
