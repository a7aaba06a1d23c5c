// Package odb implements the loose-object store: the two-level
// fan-out directory of zlib-compressed canonical object encodings under
// .git/objects.
package odb

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/internal/cache"
	"github.com/tambling/gitgo/internal/gitpath"
	"github.com/tambling/gitgo/object"
	"github.com/tambling/gitgo/zlibio"
)

// defaultCacheSize bounds the number of inflated objects Store keeps in
// memory. A clone's decode/store/checkout pipeline re-reads the same
// commit and tree objects repeatedly, so caching a modest working set
// avoids re-inflating them from disk each time.
const defaultCacheSize = 256

type cachedObject struct {
	typ     object.Type
	payload []byte
}

// Sentinel errors for the Object taxonomy (spec §7, "Object").
var (
	// ErrNotFound is returned when no loose object file exists for an Oid.
	ErrNotFound = errors.New("object not found")
	// ErrCorrupt is returned when a stored object's header doesn't match
	// its on-disk content (bad header, length mismatch).
	ErrCorrupt = errors.New("object corrupt")
)

// Store is a loose-object database rooted at a .git/objects directory.
// It never persists packfiles; a clone's decoded objects are written
// through here as loose objects.
type Store struct {
	fs    afero.Fs
	root  string // path to .git/objects
	cache *cache.LRU
}

// New returns a Store rooted at objectsDir, using fs for all I/O.
func New(fs afero.Fs, objectsDir string) *Store {
	return &Store{fs: fs, root: objectsDir, cache: cache.NewLRU(defaultCacheSize)}
}

func (s *Store) path(oid githash.Oid) string {
	sha := oid.String()
	return filepath.Join(s.root, gitpath.ObjectPath(sha))
}

// Has reports whether oid is already present in the store.
func (s *Store) Has(oid githash.Oid) (bool, error) {
	_, err := s.fs.Stat(s.path(oid))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Write deflates content's canonical encoding and writes it to the
// fan-out path for its id, creating parent directories as needed.
// Writing an object that already exists is a no-op: existing content is
// assumed correct (spec §4.C).
func (s *Store) Write(typ object.Type, content []byte) (githash.Oid, error) {
	encoded := object.Encode(typ, content)
	oid := githash.Sum(encoded)

	exists, err := s.Has(oid)
	if err != nil {
		return githash.NullOid, xerrors.Errorf("could not check for existing object %s: %w", oid, err)
	}
	if exists {
		return oid, nil
	}

	compressed, err := zlibio.DeflateAll(encoded)
	if err != nil {
		return githash.NullOid, xerrors.Errorf("could not compress object %s: %w", oid, err)
	}

	p := s.path(oid)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return githash.NullOid, xerrors.Errorf("could not create directory for %s: %w", oid, err)
	}
	if err := afero.WriteFile(s.fs, p, compressed, 0o444); err != nil {
		return githash.NullOid, xerrors.Errorf("could not write object %s: %w", oid, err)
	}
	s.cache.Add(oid.String(), cachedObject{typ: typ, payload: content})
	return oid, nil
}

// Read reads and inflates the loose object for oid and returns its type
// and payload. A recently read or written object is served from an
// in-memory cache rather than being re-inflated from disk.
func (s *Store) Read(oid githash.Oid) (typ object.Type, payload []byte, err error) {
	if v, ok := s.cache.Get(oid.String()); ok {
		c := v.(cachedObject)
		return c.typ, c.payload, nil
	}

	p := s.path(oid)
	raw, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, xerrors.Errorf("%s: %w", oid, ErrNotFound)
		}
		return 0, nil, xerrors.Errorf("could not read object %s: %w", oid, err)
	}

	decompressed, _, zerr := zlibio.InflateStream(raw)
	if zerr != nil {
		return 0, nil, xerrors.Errorf("could not decompress object %s: %w", oid, ErrCorrupt)
	}

	typ, payload, derr := object.Decode(decompressed)
	if derr != nil {
		return 0, nil, xerrors.Errorf("malformed object %s: %w", oid, ErrCorrupt)
	}
	s.cache.Add(oid.String(), cachedObject{typ: typ, payload: payload})
	return typ, payload, nil
}
