package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/object"
)

func oid(t *testing.T, s string) githash.Oid {
	t.Helper()
	o, err := githash.NewOidFromStr(s)
	require.NoError(t, err)
	return o
}

func TestNewTreeSortsDirectoriesWithTrailingSlashRule(t *testing.T) {
	t.Parallel()

	id := oid(t, "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0")
	// "foo.txt" sorts before directory "foo" when compared with the
	// trailing-slash rule ('.' < '/'), even though a plain byte
	// comparison of "foo" vs "foo.txt" would put "foo" first.
	tree := object.NewTree([]object.TreeEntry{
		{Mode: object.ModeDirectory, Name: "foo", ID: id},
		{Mode: object.ModeFile, Name: "foo.txt", ID: id},
	})

	entries := tree.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "foo.txt", entries[0].Name)
	assert.Equal(t, "foo", entries[1].Name)
}

func TestTreeEncodeParseRoundTrip(t *testing.T) {
	t.Parallel()

	id := oid(t, "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0")
	entries := []object.TreeEntry{
		{Mode: object.ModeFile, Name: "a.txt", ID: id},
		{Mode: object.ModeDirectory, Name: "b", ID: id},
		{Mode: object.ModeExecutable, Name: "run.sh", ID: id},
	}
	tree := object.NewTree(entries)
	encoded := tree.Encode()

	parsed, err := object.ParseTree(encoded)
	require.NoError(t, err)
	assert.Equal(t, tree.Entries(), parsed.Entries())
}

func TestParseTreeRejectsOutOfOrderEntries(t *testing.T) {
	t.Parallel()

	id := oid(t, "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0")
	out := object.NewTree([]object.TreeEntry{
		{Mode: object.ModeFile, Name: "z.txt", ID: id},
		{Mode: object.ModeFile, Name: "a.txt", ID: id},
	})
	// Build the payload by hand, in the wrong order.
	raw := append(append([]byte{}, "100644 z.txt\x00"...), id.Bytes()...)
	raw = append(raw, "100644 a.txt\x00"...)
	raw = append(raw, id.Bytes()...)
	_, err := object.ParseTree(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, object.ErrTreeInvalid)
	_ = out
}

func TestEmptyTreeSHA(t *testing.T) {
	t.Parallel()

	tree := object.NewTree(nil)
	o := tree.ToObject()
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", o.ID().String())
}

func TestModeType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, object.TypeTree, object.ModeDirectory.Type())
	assert.Equal(t, object.TypeCommit, object.ModeGitlink.Type())
	assert.Equal(t, object.TypeBlob, object.ModeFile.Type())
	assert.Equal(t, object.TypeBlob, object.ModeExecutable.Type())
	assert.Equal(t, object.TypeBlob, object.ModeSymlink.Type())
}
