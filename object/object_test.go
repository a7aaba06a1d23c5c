package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tambling/gitgo/object"
)

func TestObjectEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		typ     object.Type
		content []byte
	}{
		{object.TypeBlob, []byte("hello")},
		{object.TypeBlob, []byte{}},
		{object.TypeTree, []byte("not a real tree but opaque here")},
	}

	for _, tc := range testCases {
		encoded := object.Encode(tc.typ, tc.content)
		typ, payload, err := object.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, tc.typ, typ)
		assert.Equal(t, tc.content, payload)
	}
}

func TestObjectIDIsSHA1OfCanonicalEncoding(t *testing.T) {
	t.Parallel()

	o := object.NewBlob([]byte("hello"))
	assert.Equal(t, "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0", o.ID().String())
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	t.Parallel()

	_, _, err := object.Decode([]byte("blob 10\x00hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, object.ErrInvalid)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, _, err := object.Decode([]byte("widget 5\x00hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, object.ErrUnknownType)
}

func TestTypeIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, object.TypeBlob.IsValid())
	assert.True(t, object.TypeOfsDelta.IsValid())
	assert.False(t, object.Type(0).IsValid())
	assert.False(t, object.Type(5).IsValid())
	assert.False(t, object.Type(8).IsValid())
}
