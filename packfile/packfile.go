// Package packfile decodes a packfile byte stream into its constituent
// objects. A pack is decoded in two passes: a scan pass that walks every
// object once recording its header and inflated payload, and a resolve
// pass that reconstructs delta objects against their bases. Both passes
// are sequential; there is no index file and no random access, since the
// only pack this client ever decodes is the one just fetched over the
// wire.
package packfile

import (
	"bytes"
	"encoding/binary"
	"errors"

	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/object"
	"github.com/tambling/gitgo/zlibio"
)

const (
	headerSize  = 12
	trailerSize = githash.Size
	wantVersion = 2
)

var magic = []byte("PACK")

// Sentinel errors for the Pack taxonomy (spec §7, "Pack").
var (
	ErrInvalidMagic      = errors.New("invalid packfile magic")
	ErrInvalidVersion    = errors.New("unsupported packfile version")
	ErrTruncated         = errors.New("truncated packfile")
	ErrUnknownObjectType = errors.New("unknown object type in packfile")
	ErrBaseNotFound      = errors.New("delta base not found")
	ErrForwardReference  = errors.New("delta references a forward or self offset")
	ErrSizeMismatch      = errors.New("reconstructed object size mismatch")
	ErrChecksumMismatch  = errors.New("packfile trailer checksum mismatch")
	ErrBadDeltaOpcode    = errors.New("reserved delta opcode")
)

// Object is a fully resolved object decoded from a pack: a concrete
// type (never a delta type) plus its payload and identity.
type Object struct {
	ID      githash.Oid
	Type    object.Type
	Payload []byte
}

// rawEntry is what the scan pass records for a single pack entry,
// before delta resolution.
type rawEntry struct {
	offset int
	typ    object.Type
	// payload is the inflated bytes for a non-delta object, or the
	// inflated delta instruction stream (including its size header)
	// for a delta object.
	payload []byte
	// baseSHA is set for ref-delta entries.
	baseSHA githash.Oid
	// baseOffset is set for ofs-delta entries.
	baseOffset int
	hasBaseSHA bool
}

// Decode parses data as a complete packfile and returns every object it
// contains, keyed by SHA-1. It verifies the header, the trailing
// checksum, and resolves every delta to a concrete object.
func Decode(data []byte) (map[githash.Oid]*Object, error) {
	if len(data) < headerSize+trailerSize {
		return nil, xerrors.Errorf("pack is %d bytes: %w", len(data), ErrTruncated)
	}
	if !bytes.Equal(data[:4], magic) {
		return nil, xerrors.Errorf("got %q: %w", data[:4], ErrInvalidMagic)
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != wantVersion {
		return nil, xerrors.Errorf("got %d: %w", version, ErrInvalidVersion)
	}
	count := binary.BigEndian.Uint32(data[8:12])

	body := data[:len(data)-trailerSize]
	wantSum := data[len(data)-trailerSize:]
	gotSum := githash.Sum(body)
	if !bytes.Equal(gotSum.Bytes(), wantSum) {
		return nil, xerrors.Errorf("got %x: %w", gotSum.Bytes(), ErrChecksumMismatch)
	}

	entries, offsetIndex, err := scan(data, int(count))
	if err != nil {
		return nil, err
	}

	return resolve(entries, offsetIndex)
}

// scan walks the pack sequentially, recording each entry's header and
// inflated payload. It returns the entries in pack order and an
// offset->index lookup used to resolve ofs-deltas in the next pass.
func scan(data []byte, count int) ([]*rawEntry, map[int]int, error) {
	entries := make([]*rawEntry, 0, count)
	offsetIndex := make(map[int]int, count)

	pos := headerSize
	for i := 0; i < count; i++ {
		start := pos
		if pos >= len(data) {
			return nil, nil, xerrors.Errorf("object %d: %w", i, ErrTruncated)
		}

		typ, size, headerLen, err := decodeObjectHeader(data[pos:])
		if err != nil {
			return nil, nil, xerrors.Errorf("object %d: %w", i, err)
		}
		pos += headerLen

		entry := &rawEntry{offset: start, typ: typ}

		switch typ {
		case object.TypeRefDelta:
			if pos+githash.Size > len(data) {
				return nil, nil, xerrors.Errorf("object %d: %w", i, ErrTruncated)
			}
			sha, err := githash.NewOidFromHex(data[pos : pos+githash.Size])
			if err != nil {
				return nil, nil, xerrors.Errorf("object %d: %w", i, err)
			}
			entry.baseSHA = sha
			entry.hasBaseSHA = true
			pos += githash.Size
		case object.TypeOfsDelta:
			back, offLen, err := decodeOfsDeltaOffset(data[pos:])
			if err != nil {
				return nil, nil, xerrors.Errorf("object %d: %w", i, err)
			}
			baseOffset := start - back
			if baseOffset < headerSize || baseOffset >= start {
				return nil, nil, xerrors.Errorf("object %d at offset %d references offset %d: %w", i, start, baseOffset, ErrForwardReference)
			}
			entry.baseOffset = baseOffset
			pos += offLen
		default:
			if !typ.IsValid() {
				return nil, nil, xerrors.Errorf("object %d: type %d: %w", i, typ, ErrUnknownObjectType)
			}
		}

		payload, consumed, err := zlibio.InflateStream(data[pos:])
		if err != nil {
			return nil, nil, xerrors.Errorf("object %d: %w", i, err)
		}
		if len(payload) != size {
			return nil, nil, xerrors.Errorf("object %d: expected %d bytes, got %d: %w", i, size, len(payload), ErrSizeMismatch)
		}
		entry.payload = payload
		pos += consumed

		offsetIndex[start] = len(entries)
		entries = append(entries, entry)
	}

	return entries, offsetIndex, nil
}

// decodeObjectHeader parses the per-object type+size varint described in
// spec §4.G: the first byte carries a continuation bit, a 3-bit type,
// and the low 4 size bits; each further byte contributes 7 more size
// bits, least-significant chunk first.
func decodeObjectHeader(data []byte) (typ object.Type, size int, headerLen int, err error) {
	if len(data) == 0 {
		return 0, 0, 0, ErrTruncated
	}
	b := data[0]
	typ = object.Type((b >> 4) & 0b111)
	size = int(b & 0b1111)
	headerLen = 1
	shift := uint(4)

	for b&0x80 != 0 {
		if headerLen >= len(data) {
			return 0, 0, 0, ErrTruncated
		}
		b = data[headerLen]
		size |= int(b&0x7f) << shift
		shift += 7
		headerLen++
	}

	return typ, size, headerLen, nil
}

// decodeOfsDeltaOffset parses the negative base-offset varint used by
// ofs-delta entries: each byte supplies 7 big-endian bits, and every
// continuation byte beyond the first has its accumulated value bumped
// by one before the next chunk is folded in (spec §4.G).
func decodeOfsDeltaOffset(data []byte) (offset int, bytesRead int, err error) {
	if len(data) == 0 {
		return 0, 0, ErrTruncated
	}
	var value uint64
	for i, b := range data {
		value = value<<7 | uint64(b&0x7f)
		bytesRead = i + 1
		if b&0x80 == 0 {
			return int(value), bytesRead, nil
		}
		value++
	}
	return 0, 0, ErrTruncated
}

// resolve walks entries, reconstructing every delta against its base
// and returning the complete set of concrete objects keyed by SHA.
func resolve(entries []*rawEntry, offsetIndex map[int]int) (map[githash.Oid]*Object, error) {
	resolved := make([]*Object, len(entries))
	bySHA := make(map[githash.Oid]*Object, len(entries))

	var resolveAt func(i int) (*Object, error)
	resolveAt = func(i int) (*Object, error) {
		if resolved[i] != nil {
			return resolved[i], nil
		}
		e := entries[i]

		if e.typ != object.TypeOfsDelta && e.typ != object.TypeRefDelta {
			obj := &Object{Type: e.typ, Payload: e.payload}
			obj.ID = githash.Sum(object.Encode(e.typ, e.payload))
			resolved[i] = obj
			bySHA[obj.ID] = obj
			return obj, nil
		}

		var base *Object
		var err error
		if e.typ == object.TypeRefDelta {
			var ok bool
			base, ok = bySHA[e.baseSHA]
			if !ok {
				return nil, xerrors.Errorf("delta at offset %d wants base %s: %w", e.offset, e.baseSHA, ErrBaseNotFound)
			}
		} else {
			baseIdx, ok := offsetIndex[e.baseOffset]
			if !ok || baseIdx >= i {
				return nil, xerrors.Errorf("delta at offset %d: %w", e.offset, ErrForwardReference)
			}
			base, err = resolveAt(baseIdx)
			if err != nil {
				return nil, err
			}
		}

		payload, err := applyDelta(base.Payload, e.payload)
		if err != nil {
			return nil, xerrors.Errorf("delta at offset %d: %w", e.offset, err)
		}

		obj := &Object{Type: base.Type, Payload: payload}
		obj.ID = githash.Sum(object.Encode(base.Type, payload))
		resolved[i] = obj
		bySHA[obj.ID] = obj
		return obj, nil
	}

	for i := range entries {
		if _, err := resolveAt(i); err != nil {
			return nil, err
		}
	}

	return bySHA, nil
}

// applyDelta reconstructs the target object described by delta against
// base, per the copy/insert instruction stream in spec §4.G.
func applyDelta(base, delta []byte) ([]byte, error) {
	baseSize, n, err := readDeltaSize(delta)
	if err != nil {
		return nil, xerrors.Errorf("could not read base size: %w", err)
	}
	if baseSize != len(base) {
		return nil, xerrors.Errorf("base size %d, delta expects %d: %w", len(base), baseSize, ErrSizeMismatch)
	}
	delta = delta[n:]

	resultSize, n, err := readDeltaSize(delta)
	if err != nil {
		return nil, xerrors.Errorf("could not read result size: %w", err)
	}
	instructions := delta[n:]

	out := make([]byte, 0, resultSize)
	for i := 0; i < len(instructions); {
		op := instructions[i]
		i++

		if op&0x80 != 0 {
			var offset, size uint32
			for bit, shift := 0, uint(0); bit < 4; bit, shift = bit+1, shift+8 {
				if op&(1<<uint(bit)) != 0 {
					if i >= len(instructions) {
						return nil, xerrors.Errorf("%w: truncated copy offset", ErrBadDeltaOpcode)
					}
					offset |= uint32(instructions[i]) << shift
					i++
				}
			}
			for bit, shift := 0, uint(0); bit < 3; bit, shift = bit+1, shift+8 {
				if op&(1<<uint(bit+4)) != 0 {
					if i >= len(instructions) {
						return nil, xerrors.Errorf("%w: truncated copy size", ErrBadDeltaOpcode)
					}
					size |= uint32(instructions[i]) << shift
					i++
				}
			}
			if size == 0 {
				size = 0x10000
			}
			if int(offset)+int(size) > len(base) {
				return nil, xerrors.Errorf("copy [%d:%d] exceeds base of %d bytes: %w", offset, offset+size, len(base), ErrSizeMismatch)
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if op == 0 {
			return nil, ErrBadDeltaOpcode
		}
		length := int(op)
		if i+length > len(instructions) {
			return nil, xerrors.Errorf("%w: truncated insert", ErrBadDeltaOpcode)
		}
		out = append(out, instructions[i:i+length]...)
		i += length
	}

	if len(out) != resultSize {
		return nil, xerrors.Errorf("got %d bytes, expected %d: %w", len(out), resultSize, ErrSizeMismatch)
	}
	return out, nil
}

// readDeltaSize reads one of the two varints at the start of a delta
// instruction stream (base size, then result size). Unlike the
// per-object header these are plain little-endian 7-bit chunks with no
// embedded type field.
func readDeltaSize(data []byte) (size int, bytesRead int, err error) {
	shift := uint(0)
	for i, b := range data {
		size |= int(b&0x7f) << shift
		shift += 7
		bytesRead = i + 1
		if b&0x80 == 0 {
			return size, bytesRead, nil
		}
	}
	return 0, 0, ErrTruncated
}
