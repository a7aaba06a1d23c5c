package object_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/object"
)

var fixtureCounter int

func oidFixture(t *testing.T) githash.Oid {
	t.Helper()
	fixtureCounter++
	return githash.Sum([]byte{byte(fixtureCounter)})
}

func TestCommitEncodeParseRoundTrip(t *testing.T) {
	t.Parallel()

	tree := oidFixture(t)
	parent := oidFixture(t)
	sig := object.Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: time.Unix(0, 0).UTC()}

	c := &object.Commit{
		TreeID:    tree,
		ParentIDs: []githash.Oid{parent},
		Author:    sig,
		Committer: sig,
		Message:   "init\n",
	}

	parsed, err := object.ParseCommit(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c.TreeID, parsed.TreeID)
	assert.Equal(t, c.ParentIDs, parsed.ParentIDs)
	assert.Equal(t, c.Message, parsed.Message)
	assert.Equal(t, c.Author.Name, parsed.Author.Name)
	assert.Equal(t, c.Author.Email, parsed.Author.Email)
	assert.Equal(t, c.Author.When.Unix(), parsed.Author.When.Unix())
}

func TestCommitDeterministicSHA(t *testing.T) {
	t.Parallel()

	tree := oidFixture(t)
	sig := object.Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: time.Unix(0, 0).UTC()}

	c := &object.Commit{
		TreeID:    tree,
		Author:    sig,
		Committer: sig,
		Message:   "init\n",
	}

	first := c.ToObject().ID().String()
	second := c.ToObject().ID().String()
	assert.Equal(t, first, second)
}

func TestParseCommitRequiresTreeAndAuthor(t *testing.T) {
	t.Parallel()

	_, err := object.ParseCommit([]byte("\nmessage only\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, object.ErrCommitInvalid)
}

func TestParseSignature(t *testing.T) {
	t.Parallel()

	sig, err := object.ParseSignature([]byte("Ada Lovelace <ada@example.com> 0 +0000"))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", sig.Name)
	assert.Equal(t, "ada@example.com", sig.Email)
	assert.Equal(t, int64(0), sig.When.Unix())
}

func TestParseSignatureRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := object.ParseSignature([]byte("no angle brackets here"))
	require.Error(t, err)
	assert.ErrorIs(t, err, object.ErrSignatureInvalid)
}
