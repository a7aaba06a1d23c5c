// Package object implements Git's canonical object encoding: the
// <type> SP <length> NUL <payload> byte string whose SHA-1 is an
// object's identity, and the blob/tree/commit/tag variants built on it.
package object

import (
	"bytes"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
)

// Sentinel errors for the object taxonomy (spec §7, "Object").
var (
	// ErrUnknownType is returned for an object type outside blob/tree/commit/tag.
	ErrUnknownType = errors.New("unknown object type")
	// ErrInvalid is returned when an object's payload does not match its type.
	ErrInvalid = errors.New("invalid object")
	// ErrTreeInvalid is returned when a tree's payload cannot be parsed.
	ErrTreeInvalid = errors.New("invalid tree")
	// ErrCommitInvalid is returned when a commit's payload cannot be parsed.
	ErrCommitInvalid = errors.New("invalid commit")
	// ErrTagInvalid is returned when a tag's payload cannot be parsed.
	ErrTagInvalid = errors.New("invalid tag")
	// ErrSignatureInvalid is returned when an author/committer line is malformed.
	ErrSignatureInvalid = errors.New("invalid signature")
)

// Type identifies the kind of a Git object. The numeric values match the
// type codes used in the packfile per-object header (spec §4.G).
type Type int8

// Object type codes, as used both on disk (string form) and in packfiles
// (numeric form).
const (
	TypeCommit Type = 1
	TypeTree   Type = 2
	TypeBlob   Type = 3
	TypeTag    Type = 4
	// 0 and 5 are reserved by the packfile format and rejected elsewhere.
	TypeOfsDelta Type = 6
	TypeRefDelta Type = 7
)

// String returns the on-disk type name ("blob", "tree", "commit", "tag").
func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	case TypeOfsDelta:
		return "ofs-delta"
	case TypeRefDelta:
		return "ref-delta"
	default:
		return "unknown"
	}
}

// IsValid reports whether t is one of the known type codes.
func (t Type) IsValid() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeTag, TypeOfsDelta, TypeRefDelta:
		return true
	default:
		return false
	}
}

// NewTypeFromString parses a storage type name ("blob", "tree", "commit",
// "tag") into a Type. Delta types never appear on disk, so they are not
// accepted here.
func NewTypeFromString(s string) (Type, error) {
	switch s {
	case "blob":
		return TypeBlob, nil
	case "tree":
		return TypeTree, nil
	case "commit":
		return TypeCommit, nil
	case "tag":
		return TypeTag, nil
	default:
		return 0, ErrUnknownType
	}
}

// Object is a Git object: a type tag plus an opaque payload. Its id is
// the SHA-1 of its canonical encoding and is computed lazily, once, the
// first time it is asked for.
type Object struct {
	typ     Type
	content []byte

	once sync.Once
	id   githash.Oid
}

// New creates an in-memory object of the given type wrapping content.
// The id is computed lazily from the canonical encoding.
func New(typ Type, content []byte) *Object {
	return &Object{typ: typ, content: content}
}

// NewWithID creates an object whose id is already known (e.g. because it
// was read from the store at that path, or resolved from a packfile
// delta chain), skipping the recomputation.
func NewWithID(id githash.Oid, typ Type, content []byte) *Object {
	o := &Object{typ: typ, content: content}
	o.once.Do(func() {})
	o.id = id
	return o
}

// Type returns the object's type.
func (o *Object) Type() Type {
	return o.typ
}

// Size returns the payload length in bytes.
func (o *Object) Size() int {
	return len(o.content)
}

// Bytes returns the object's raw payload (not the canonical encoding).
func (o *Object) Bytes() []byte {
	return o.content
}

// ID returns the object's SHA-1 identity, computing it on first use.
func (o *Object) ID() githash.Oid {
	o.once.Do(func() {
		o.id = githash.Sum(o.Encode())
	})
	return o.id
}

// Encode returns the canonical byte encoding of the object:
// "<type> <length>\x00<payload>". Its SHA-1 is the object's identity.
func Encode(typ Type, content []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(typ.String())
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(len(content)))
	buf.WriteByte(0)
	buf.Write(content)
	return buf.Bytes()
}

// Encode returns the canonical byte encoding of o.
func (o *Object) Encode() []byte {
	return Encode(o.typ, o.content)
}

// Decode splits a canonical encoding back into its type and payload. It
// returns ErrUnknownType or ErrInvalid if the header is malformed, and
// detects a payload length mismatch against the declared length.
func Decode(data []byte) (Type, []byte, error) {
	sp := bytes.IndexByte(data, ' ')
	if sp < 0 {
		return 0, nil, xerrors.Errorf("missing type separator: %w", ErrInvalid)
	}
	typ, err := NewTypeFromString(string(data[:sp]))
	if err != nil {
		return 0, nil, xerrors.Errorf("%s: %w", string(data[:sp]), err)
	}

	nul := bytes.IndexByte(data[sp+1:], 0)
	if nul < 0 {
		return 0, nil, xerrors.Errorf("missing header terminator: %w", ErrInvalid)
	}
	declaredLen, err := strconv.Atoi(string(data[sp+1 : sp+1+nul]))
	if err != nil {
		return 0, nil, xerrors.Errorf("invalid length %q: %w", data[sp+1:sp+1+nul], ErrInvalid)
	}

	payload := data[sp+1+nul+1:]
	if len(payload) != declaredLen {
		return 0, nil, xerrors.Errorf("length mismatch: header says %d, got %d: %w", declaredLen, len(payload), ErrInvalid)
	}
	return typ, payload, nil
}
