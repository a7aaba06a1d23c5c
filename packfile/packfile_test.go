package packfile_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/object"
	"github.com/tambling/gitgo/packfile"
	"github.com/tambling/gitgo/zlibio"
)

// packBuilder assembles a synthetic packfile byte-for-byte, entry by
// entry, so tests can exercise the decoder without a real git binary.
type packBuilder struct {
	body  bytes.Buffer
	count uint32
}

func newPackBuilder() *packBuilder {
	return &packBuilder{}
}

func encodeObjectHeader(typ object.Type, size int) []byte {
	first := byte(typ) << 4
	rest := size >> 4
	if rest > 0 {
		first |= 0x80
	}
	first |= byte(size & 0x0f)
	out := []byte{first}
	size = rest
	for size > 0 {
		b := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func encodeOfsOffset(back int) []byte {
	// matches decodeOfsDeltaOffset's big-endian, "+1 on continuation" scheme
	var chunks []byte
	v := back
	chunks = append(chunks, byte(v&0x7f))
	v >>= 7
	for v > 0 {
		v--
		chunks = append(chunks, byte(v&0x7f)|0x80)
		v >>= 7
	}
	// reverse into big-endian order
	out := make([]byte, len(chunks))
	for i, c := range chunks {
		out[len(chunks)-1-i] = c
	}
	return out
}

func (b *packBuilder) addBlob(t *testing.T, content []byte) int {
	t.Helper()
	offset := b.body.Len()
	b.body.Write(encodeObjectHeader(object.TypeBlob, len(content)))
	compressed, err := zlibio.DeflateAll(content)
	require.NoError(t, err)
	b.body.Write(compressed)
	b.count++
	return offset
}

func (b *packBuilder) addOfsDelta(t *testing.T, baseOffset int, instructions []byte) int {
	t.Helper()
	offset := b.body.Len()
	b.body.Write(encodeObjectHeader(object.TypeOfsDelta, len(instructions)))
	b.body.Write(encodeOfsOffset(offset - baseOffset))
	compressed, err := zlibio.DeflateAll(instructions)
	require.NoError(t, err)
	b.body.Write(compressed)
	b.count++
	return offset
}

func (b *packBuilder) addRefDelta(t *testing.T, base githash.Oid, instructions []byte) int {
	t.Helper()
	offset := b.body.Len()
	b.body.Write(encodeObjectHeader(object.TypeRefDelta, len(instructions)))
	b.body.Write(base.Bytes())
	compressed, err := zlibio.DeflateAll(instructions)
	require.NoError(t, err)
	b.body.Write(compressed)
	b.count++
	return offset
}

func deltaSizeVarint(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n > 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			break
		}
	}
	return out
}

// copyInstruction builds a delta copy opcode for base[offset:offset+size].
func copyInstruction(offset, size uint32) []byte {
	op := byte(0x80)
	var args []byte
	for i := 0; i < 4; i++ {
		b := byte(offset >> (8 * uint(i)))
		if b != 0 {
			op |= 1 << uint(i)
			args = append(args, b)
		}
	}
	for i := 0; i < 3; i++ {
		b := byte(size >> (8 * uint(i)))
		if b != 0 {
			op |= 1 << uint(i+4)
			args = append(args, b)
		}
	}
	return append([]byte{op}, args...)
}

// insertInstruction builds a delta insert opcode carrying literal.
func insertInstruction(literal []byte) []byte {
	return append([]byte{byte(len(literal))}, literal...)
}

func (b *packBuilder) finish() []byte {
	header := make([]byte, 12)
	copy(header[:4], "PACK")
	binary.BigEndian.PutUint32(header[4:8], 2)
	binary.BigEndian.PutUint32(header[8:12], b.count)

	full := append(header, b.body.Bytes()...)
	sum := githash.Sum(full)
	return append(full, sum.Bytes()...)
}

func TestDecodeOfsDeltaChain(t *testing.T) {
	t.Parallel()

	b := newPackBuilder()
	baseOffset := b.addBlob(t, []byte("abcdefgh"))

	instr := append(deltaSizeVarint(8), deltaSizeVarint(11)...)
	instr = append(instr, copyInstruction(0, 8)...)
	instr = append(instr, insertInstruction([]byte("xyz"))...)
	b.addOfsDelta(t, baseOffset, instr)

	objects, err := packfile.Decode(b.finish())
	require.NoError(t, err)
	require.Len(t, objects, 2)

	baseID := githash.Sum(object.Encode(object.TypeBlob, []byte("abcdefgh")))
	deltaID := githash.Sum(object.Encode(object.TypeBlob, []byte("abcdefghxyz")))

	require.Contains(t, objects, baseID)
	require.Contains(t, objects, deltaID)
	assert.Equal(t, []byte("abcdefgh"), objects[baseID].Payload)
	assert.Equal(t, []byte("abcdefghxyz"), objects[deltaID].Payload)
	assert.Equal(t, object.TypeBlob, objects[deltaID].Type)
}

func TestDecodeRefDeltaAcrossPackOrder(t *testing.T) {
	t.Parallel()

	b := newPackBuilder()
	b.addBlob(t, []byte("hello world"))
	baseID := githash.Sum(object.Encode(object.TypeBlob, []byte("hello world")))

	instr := append(deltaSizeVarint(11), deltaSizeVarint(5)...)
	instr = append(instr, copyInstruction(0, 5)...)
	b.addRefDelta(t, baseID, instr)

	objects, err := packfile.Decode(b.finish())
	require.NoError(t, err)

	deltaID := githash.Sum(object.Encode(object.TypeBlob, []byte("hello")))
	require.Contains(t, objects, deltaID)
	assert.Equal(t, []byte("hello"), objects[deltaID].Payload)
}

func TestDecodeRefDeltaMissingBaseErrors(t *testing.T) {
	t.Parallel()

	b := newPackBuilder()
	missingBase := githash.Sum([]byte("nonexistent"))
	instr := append(deltaSizeVarint(11), deltaSizeVarint(5)...)
	instr = append(instr, copyInstruction(0, 5)...)
	b.addRefDelta(t, missingBase, instr)

	_, err := packfile.Decode(b.finish())
	require.Error(t, err)
	assert.ErrorIs(t, err, packfile.ErrBaseNotFound)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	t.Parallel()

	b := newPackBuilder()
	b.addBlob(t, []byte("x"))
	data := b.finish()
	data[0] = 'X'
	// the checksum no longer matches once we corrupt the magic, but
	// magic is checked first so ErrInvalidMagic should win.
	_, err := packfile.Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, packfile.ErrInvalidMagic)
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	t.Parallel()

	b := newPackBuilder()
	b.addBlob(t, []byte("x"))
	data := b.finish()
	data[len(data)-1] ^= 0xff

	_, err := packfile.Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, packfile.ErrChecksumMismatch)
}

func TestDecodeSingleBlob(t *testing.T) {
	t.Parallel()

	b := newPackBuilder()
	b.addBlob(t, []byte("just a blob"))

	objects, err := packfile.Decode(b.finish())
	require.NoError(t, err)
	require.Len(t, objects, 1)

	for _, o := range objects {
		assert.Equal(t, object.TypeBlob, o.Type)
		assert.Equal(t, []byte("just a blob"), o.Payload)
	}
}
