// Package refs reads and writes Git references: plain files under
// .git/refs/<kind>/<name> holding either a 40-hex object id or a
// "ref: <target>\n" symbolic pointer.
package refs

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
)

// HEAD is the name of the reference that tracks the current branch.
const HEAD = "HEAD"

// Sentinel errors for reference resolution.
var (
	ErrNotFound    = errors.New("reference not found")
	ErrNameInvalid = errors.New("reference name is not valid")
	ErrInvalid     = errors.New("reference is not valid")
	ErrCircular    = errors.New("circular symbolic reference")
)

// Type distinguishes a direct (oid) reference from a symbolic one.
type Type int8

const (
	TypeOid      Type = 1
	TypeSymbolic Type = 2
)

// Reference is a resolved Git reference.
type Reference struct {
	name           string
	target         githash.Oid
	symbolicTarget string
	typ            Type
}

// Name returns the reference's own name, e.g. "HEAD" or "refs/heads/main".
func (r *Reference) Name() string { return r.name }

// Target returns the resolved object id, following any symbolic chain.
func (r *Reference) Target() githash.Oid { return r.target }

// Type returns whether r is a direct or symbolic reference.
func (r *Reference) Type() Type { return r.typ }

// SymbolicTarget returns the ref name r points to, if r is symbolic.
func (r *Reference) SymbolicTarget() string { return r.symbolicTarget }

// Store reads and writes references rooted at a .git directory.
type Store struct {
	fs      afero.Fs
	gitRoot string
}

// New returns a Store rooted at gitRoot (a .git directory).
func New(fs afero.Fs, gitRoot string) *Store {
	return &Store{fs: fs, gitRoot: gitRoot}
}

func (s *Store) path(name string) string {
	if name == HEAD {
		return filepath.Join(s.gitRoot, HEAD)
	}
	return filepath.Join(s.gitRoot, name)
}

// Resolve follows name, recursively dereferencing symbolic targets,
// and returns the final Reference. Detects and rejects cycles.
func (s *Store) Resolve(name string) (*Reference, error) {
	return s.resolve(name, map[string]struct{}{})
}

func (s *Store) resolve(name string, visited map[string]struct{}) (*Reference, error) {
	if !IsNameValid(name) {
		return nil, xerrors.Errorf("ref %q: %w", name, ErrNameInvalid)
	}
	if _, ok := visited[name]; ok {
		return nil, xerrors.Errorf("ref %q: %w", name, ErrCircular)
	}
	visited[name] = struct{}{}

	raw, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		return nil, xerrors.Errorf("ref %q: %w", name, ErrNotFound)
	}
	data := bytes.TrimSpace(raw)

	if bytes.HasPrefix(data, []byte("ref: ")) {
		target := string(data[len("ref: "):])
		resolved, err := s.resolve(target, visited)
		if err != nil {
			return nil, err
		}
		return &Reference{
			typ:            TypeSymbolic,
			name:           name,
			target:         resolved.target,
			symbolicTarget: target,
		}, nil
	}

	oid, err := githash.NewOidFromChars(data)
	if err != nil {
		return nil, xerrors.Errorf("ref %q: %w", name, ErrInvalid)
	}
	return &Reference{typ: TypeOid, name: name, target: oid}, nil
}

// WriteOid writes name as a direct reference to target.
func (s *Store) WriteOid(name string, target githash.Oid) error {
	if !IsNameValid(name) && name != HEAD {
		return xerrors.Errorf("ref %q: %w", name, ErrNameInvalid)
	}
	p := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Errorf("could not create directory for %s: %w", name, err)
	}
	return afero.WriteFile(s.fs, p, []byte(target.String()+"\n"), 0o644)
}

// WriteSymbolic writes name as a symbolic reference to target.
func (s *Store) WriteSymbolic(name, target string) error {
	p := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Errorf("could not create directory for %s: %w", name, err)
	}
	return afero.WriteFile(s.fs, p, []byte("ref: "+target+"\n"), 0o644)
}

// IsNameValid reports whether name is a syntactically valid reference
// name, per Git's check-ref-format rules.
func IsNameValid(name string) bool {
	if name == "" || name == "/" || name[len(name)-1] == '/' || name[len(name)-1] == '.' {
		return false
	}

	for i, c := range name {
		if c < 32 || c == 127 {
			return false
		}
		if c == '*' || c == '?' || c == '!' || c == '^' || c == '~' {
			return false
		}
		if c == ' ' || c == '[' || c == '\\' || c == ':' {
			return false
		}
		if i < len(name)-1 {
			switch name[i : i+2] {
			case "@{", "..":
				return false
			}
		}
	}

	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment[0] == '.' || segment[len(segment)-1] == '.' || strings.HasSuffix(segment, ".lock") {
			return false
		}
	}

	return true
}
