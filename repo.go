// Package gitgo ties the object store, reference store, pkt-line
// transport, and packfile decoder together into the handful of
// operations a minimal client exposes: init, write-tree, commit-tree,
// and clone.
package gitgo

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/checkout"
	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/internal/gitpath"
	"github.com/tambling/gitgo/object"
	"github.com/tambling/gitgo/odb"
	"github.com/tambling/gitgo/packfile"
	"github.com/tambling/gitgo/refs"
	"github.com/tambling/gitgo/transport"
)

// ErrNotARepository is returned by Open when root has no .git directory.
var ErrNotARepository = errors.New("not a git repository")

// Repository is an opened working directory: its .git data store plus
// the working tree root it was checked out into.
type Repository struct {
	fs      afero.Fs
	root    string
	gitDir  string
	Objects *odb.Store
	Refs    *refs.Store
}

func gitDir(root string) string {
	return filepath.Join(root, gitpath.DotGit)
}

// Init creates a new repository rooted at root: .git, .git/objects,
// .git/refs/heads, and HEAD pointing at refs/heads/main. It is
// idempotent; calling it again on an existing repository leaves HEAD
// untouched and just ensures the directory layout is present (spec §4.I).
func Init(fs afero.Fs, root string) (*Repository, error) {
	dir := gitDir(root)

	for _, d := range []string{gitpath.Objects, gitpath.RefsHeads, gitpath.RefsTags} {
		if err := fs.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return nil, xerrors.Errorf("could not create %s: %w", d, err)
		}
	}

	r := &Repository{
		fs:      fs,
		root:    root,
		gitDir:  dir,
		Objects: odb.New(fs, filepath.Join(dir, gitpath.Objects)),
		Refs:    refs.New(fs, dir),
	}

	exists, err := afero.Exists(fs, filepath.Join(dir, gitpath.HEAD))
	if err != nil {
		return nil, xerrors.Errorf("could not check for existing HEAD: %w", err)
	}
	if !exists {
		if err := r.Refs.WriteSymbolic(refs.HEAD, gitpath.LocalBranch(gitpath.DefaultMain)); err != nil {
			return nil, xerrors.Errorf("could not write HEAD: %w", err)
		}
	}

	return r, nil
}

// Open returns the Repository rooted at root, which must already have
// been initialized.
func Open(fs afero.Fs, root string) (*Repository, error) {
	dir := gitDir(root)
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("could not stat %s: %w", dir, err)
	}
	if !exists {
		return nil, xerrors.Errorf("%s: %w", root, ErrNotARepository)
	}
	return &Repository{
		fs:      fs,
		root:    root,
		gitDir:  dir,
		Objects: odb.New(fs, filepath.Join(dir, gitpath.Objects)),
		Refs:    refs.New(fs, dir),
	}, nil
}

// WriteTree recursively traverses the working directory, skipping
// .git, writing a blob for every file and a tree for every non-empty
// directory in post-order, and returns the root tree's id. Entries are
// sorted per the canonical tree order (spec §3) regardless of the
// filesystem's readdir order, and the call is idempotent: re-running it
// against an unchanged tree yields the same id, since every write is
// content-addressed.
func (r *Repository) WriteTree() (githash.Oid, error) {
	return r.writeTreeAt(r.root)
}

func (r *Repository) writeTreeAt(dir string) (githash.Oid, error) {
	infos, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return githash.NullOid, xerrors.Errorf("could not read directory %s: %w", dir, err)
	}

	var entries []object.TreeEntry
	for _, info := range infos {
		if info.Name() == gitpath.DotGit {
			continue
		}
		full := filepath.Join(dir, info.Name())

		if info.IsDir() {
			sub, err := r.writeTreeAt(full)
			if err != nil {
				return githash.NullOid, err
			}
			if sub == object.NewTree(nil).ToObject().ID() {
				// Git never tracks empty directories, including ones
				// that hold nothing but other empty directories.
				continue
			}
			entries = append(entries, object.TreeEntry{Mode: object.ModeDirectory, Name: info.Name(), ID: sub})
			continue
		}

		content, err := afero.ReadFile(r.fs, full)
		if err != nil {
			return githash.NullOid, xerrors.Errorf("could not read %s: %w", full, err)
		}
		mode := object.ModeFile
		if info.Mode().Perm()&0o111 != 0 {
			mode = object.ModeExecutable
		}
		blobID, err := r.Objects.Write(object.TypeBlob, content)
		if err != nil {
			return githash.NullOid, xerrors.Errorf("could not write blob for %s: %w", full, err)
		}
		entries = append(entries, object.TreeEntry{Mode: mode, Name: info.Name(), ID: blobID})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	tree := object.NewTree(entries)
	return r.Objects.Write(object.TypeTree, tree.Encode())
}

// CommitTree encodes and writes a commit object pointing at treeID with
// the given parents, author, committer, and message, and returns its id.
func (r *Repository) CommitTree(treeID githash.Oid, parents []githash.Oid, author, committer object.Signature, message string) (githash.Oid, error) {
	commit := &object.Commit{
		TreeID:    treeID,
		ParentIDs: parents,
		Author:    author,
		Committer: committer,
		Message:   message,
	}
	return r.Objects.Write(object.TypeCommit, commit.Encode())
}

// Clone fetches repoURL over Smart HTTP, decodes its packfile, writes
// every object to dir's object store, selects a target branch, and
// checks out its tree into dir. dir is created if it doesn't exist
// (spec §2, the full discover -> fetch -> decode -> store -> checkout
// pipeline).
func Clone(ctx context.Context, fs afero.Fs, client *http.Client, repoURL, dir string) (*Repository, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("could not create %s: %w", dir, err)
	}
	r, err := Init(fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("could not initialize %s: %w", dir, err)
	}

	adv, err := transport.DiscoverRefs(ctx, client, repoURL)
	if err != nil {
		return nil, xerrors.Errorf("could not discover refs: %w", err)
	}

	wants := wantedOids(adv)
	if len(wants) == 0 {
		return r, nil // empty repository: nothing to fetch or check out
	}

	packData, err := transport.UploadPack(ctx, client, repoURL, wants)
	if err != nil {
		return nil, xerrors.Errorf("could not fetch pack: %w", err)
	}

	objects, err := packfile.Decode(packData)
	if err != nil {
		return nil, xerrors.Errorf("could not decode pack: %w", err)
	}
	for _, o := range objects {
		if _, err := r.Objects.Write(o.Type, o.Payload); err != nil {
			return nil, xerrors.Errorf("could not store object %s: %w", o.ID, err)
		}
	}

	targetBranch, targetOid, err := selectTargetBranch(adv)
	if err != nil {
		return nil, err
	}

	if err := r.Refs.WriteOid(targetBranch, targetOid); err != nil {
		return nil, xerrors.Errorf("could not write %s: %w", targetBranch, err)
	}
	if err := r.Refs.WriteSymbolic(refs.HEAD, targetBranch); err != nil {
		return nil, xerrors.Errorf("could not update HEAD: %w", err)
	}

	if err := checkout.Commit(fs, r.Objects, targetOid, dir); err != nil {
		return nil, xerrors.Errorf("could not check out %s: %w", targetOid, err)
	}

	return r, nil
}

// wantedOids collects the tip of every advertised ref (except HEAD
// itself, whose target is already named by its own ref) as a pkt-line
// "want" target, deduplicated and sorted for a deterministic request.
func wantedOids(adv *transport.Advertisement) []string {
	seen := make(map[string]struct{}, len(adv.Refs))
	var wants []string
	for name, sha := range adv.Refs {
		if name == refs.HEAD {
			continue
		}
		if _, ok := seen[sha]; ok {
			continue
		}
		seen[sha] = struct{}{}
		wants = append(wants, sha)
	}
	sort.Strings(wants)
	return wants
}

// selectTargetBranch picks the branch clone should check out: the
// server's advertised HEAD target if present, else whichever
// refs/heads/* entry shares HEAD's sha (spec §4.J).
func selectTargetBranch(adv *transport.Advertisement) (name string, oid githash.Oid, err error) {
	if adv.HEADTarget != "" {
		sha, ok := adv.Refs[adv.HEADTarget]
		if !ok {
			return "", githash.NullOid, xerrors.Errorf("advertised HEAD target %s: %w", adv.HEADTarget, transport.ErrNoHEAD)
		}
		oid, err := githash.NewOidFromStr(sha)
		if err != nil {
			return "", githash.NullOid, xerrors.Errorf("advertised ref %s: %w", adv.HEADTarget, err)
		}
		return adv.HEADTarget, oid, nil
	}

	headSHA, ok := adv.Refs[refs.HEAD]
	if !ok {
		return "", githash.NullOid, xerrors.Errorf("advertisement has no HEAD: %w", transport.ErrNoHEAD)
	}

	branchPrefix := gitpath.RefsHeads + "/"
	var matches []string
	for candidate, sha := range adv.Refs {
		if sha == headSHA && strings.HasPrefix(candidate, branchPrefix) {
			matches = append(matches, candidate)
		}
	}
	if len(matches) == 0 {
		return "", githash.NullOid, xerrors.Errorf("no branch matches advertised HEAD sha %s: %w", headSHA, transport.ErrNoHEAD)
	}
	sort.Strings(matches)
	name = matches[0]
	oid, err = githash.NewOidFromStr(adv.Refs[name])
	if err != nil {
		return "", githash.NullOid, xerrors.Errorf("advertised ref %s: %w", name, err)
	}
	return name, oid, nil
}
