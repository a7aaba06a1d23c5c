package object

import (
	"bytes"
	"sort"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/internal/readutil"
)

// Mode is the octal file mode stored alongside each tree entry.
type Mode int32

// Supported tree entry modes (spec §3).
const (
	ModeFile       Mode = 0o100644
	ModeExecutable Mode = 0o100755
	ModeSymlink    Mode = 0o120000
	ModeDirectory  Mode = 0o040000
	ModeGitlink    Mode = 0o160000
)

// IsValid reports whether m is one of the five supported modes.
func (m Mode) IsValid() bool {
	switch m {
	case ModeFile, ModeExecutable, ModeSymlink, ModeDirectory, ModeGitlink:
		return true
	default:
		return false
	}
}

// Type returns the object type a tree entry of this mode points at.
func (m Mode) Type() Type {
	switch m {
	case ModeDirectory:
		return TypeTree
	case ModeGitlink:
		return TypeCommit
	default:
		return TypeBlob
	}
}

// TreeEntry is one line of a tree object: a mode, a name, and the Oid it
// points to. Names never contain '/' or NUL.
type TreeEntry struct {
	Mode Mode
	Name string
	ID   githash.Oid
}

// sortKey returns the name used to order entries: directories are
// compared as if their name carried a trailing '/', so that a directory
// "foo" sorts after a file "foo.txt" ('.' < '/') even though a plain
// byte-wise sort of the stored names would put "foo" first - this is
// Git's actual tree sort rule.
func (e TreeEntry) sortKey() string {
	if e.Mode == ModeDirectory {
		return e.Name + "/"
	}
	return e.Name
}

// Tree is a parsed tree object: an ordered list of entries.
type Tree struct {
	entries []TreeEntry
}

// NewTree builds a Tree from entries, sorting them per Git's tree order
// (spec §3: "directories sort as if their name has a trailing /").
func NewTree(entries []TreeEntry) *Tree {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].sortKey() < sorted[j].sortKey()
	})
	return &Tree{entries: sorted}
}

// Entries returns a copy of the tree's entries, in their canonical order.
func (t *Tree) Entries() []TreeEntry {
	out := make([]TreeEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Encode returns the canonical tree payload: a back-to-back sequence of
// "<mode> <name>\x00<20-byte-oid>".
func (t *Tree) Encode() []byte {
	buf := new(bytes.Buffer)
	for _, e := range t.entries {
		buf.WriteString(strconv.FormatInt(int64(e.Mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.ID.Bytes())
	}
	return buf.Bytes()
}

// ToObject returns the Object wrapping t's canonical encoding.
func (t *Tree) ToObject() *Object {
	return New(TypeTree, t.Encode())
}

// ParseTree decodes a tree payload into its entries, validating that
// they are strictly sorted per Git's tree order (spec §3 invariant).
func ParseTree(payload []byte) (*Tree, error) {
	var entries []TreeEntry
	offset := 0
	for i := 1; offset < len(payload); i++ {
		modeBytes := readutil.ReadTo(payload[offset:], ' ')
		if modeBytes == nil {
			return nil, xerrors.Errorf("entry %d: missing mode: %w", i, ErrTreeInvalid)
		}
		offset += len(modeBytes) + 1

		mode, err := strconv.ParseInt(string(modeBytes), 8, 32)
		if err != nil {
			return nil, xerrors.Errorf("entry %d: invalid mode %q: %w", i, modeBytes, ErrTreeInvalid)
		}

		nameBytes := readutil.ReadTo(payload[offset:], 0)
		if nameBytes == nil {
			return nil, xerrors.Errorf("entry %d: missing name: %w", i, ErrTreeInvalid)
		}
		offset += len(nameBytes) + 1

		if offset+githash.Size > len(payload) {
			return nil, xerrors.Errorf("entry %d: truncated oid: %w", i, ErrTreeInvalid)
		}
		id, err := githash.NewOidFromHex(payload[offset : offset+githash.Size])
		if err != nil {
			return nil, xerrors.Errorf("entry %d: invalid oid: %w", i, ErrTreeInvalid)
		}
		offset += githash.Size

		entries = append(entries, TreeEntry{
			Mode: Mode(mode),
			Name: string(nameBytes),
			ID:   id,
		})
	}

	for i := 1; i < len(entries); i++ {
		if entries[i-1].sortKey() >= entries[i].sortKey() {
			return nil, xerrors.Errorf("entries out of order at %d (%q, %q): %w", i, entries[i-1].Name, entries[i].Name, ErrTreeInvalid)
		}
	}

	return &Tree{entries: entries}, nil
}
