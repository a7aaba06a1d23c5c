package gitgo_test

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gitgo "github.com/tambling/gitgo"
	"github.com/tambling/gitgo/object"
	"github.com/tambling/gitgo/refs"
)

func TestInitIsIdempotent(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	r1, err := gitgo.Init(fs, "/repo")
	require.NoError(t, err)

	head1, err := afero.ReadFile(fs, "/repo/.git/HEAD")
	require.NoError(t, err)

	r2, err := gitgo.Init(fs, "/repo")
	require.NoError(t, err)

	head2, err := afero.ReadFile(fs, "/repo/.git/HEAD")
	require.NoError(t, err)

	assert.Equal(t, head1, head2)
	assert.NotNil(t, r1)
	assert.NotNil(t, r2)

	ref, err := r2.Refs.Resolve(refs.HEAD)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", ref.SymbolicTarget())
}

func TestOpenRejectsNonRepository(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/plain", 0o755))

	_, err := gitgo.Open(fs, "/plain")
	require.Error(t, err)
	assert.ErrorIs(t, err, gitgo.ErrNotARepository)
}

func TestWriteTreeOnEmptyWorkingDirectoryMatchesEmptyTreeSHA(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	r, err := gitgo.Init(fs, "/repo")
	require.NoError(t, err)

	treeID, err := r.WriteTree()
	require.NoError(t, err)
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", treeID.String())
}

func TestWriteTreeIsIdempotent(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	r, err := gitgo.Init(fs, "/repo")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/repo/a.txt", []byte("hello"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/b.txt", []byte("world"), 0o644))

	first, err := r.WriteTree()
	require.NoError(t, err)
	second, err := r.WriteTree()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteTreeSkipsEmptySubdirectories(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	r, err := gitgo.Init(fs, "/repo")
	require.NoError(t, err)
	require.NoError(t, fs.MkdirAll("/repo/empty", 0o755))

	treeID, err := r.WriteTree()
	require.NoError(t, err)
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", treeID.String())
}

func TestCommitTreeIsDeterministic(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	r, err := gitgo.Init(fs, "/repo")
	require.NoError(t, err)

	treeID, err := r.WriteTree()
	require.NoError(t, err)

	sig := object.Signature{Name: "tester", Email: "t@example.com", When: time.Unix(0, 0).UTC()}
	commitID, err := r.CommitTree(treeID, nil, sig, sig, "init\n")
	require.NoError(t, err)

	commitID2, err := r.CommitTree(treeID, nil, sig, sig, "init\n")
	require.NoError(t, err)
	assert.Equal(t, commitID, commitID2)
}
