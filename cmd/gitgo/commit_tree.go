package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/object"
)

func newCommitTreeCmd(fs afero.Fs, getDir func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-tree TREE",
		Short: "create a commit object from a tree and its parents",
		Args:  cobra.ExactArgs(1),
	}

	message := cmd.Flags().StringP("message", "m", "", "commit message")
	parents := cmd.Flags().StringArrayP("parent", "p", nil, "parent commit (may be repeated)")
	author := cmd.Flags().String("author", "gitgo <gitgo@localhost>", `author identity, as "Name <email>"`)
	committer := cmd.Flags().String("committer", "", `committer identity, as "Name <email>"; defaults to --author`)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		who := *committer
		if who == "" {
			who = *author
		}
		return commitTreeCmd(cmd.OutOrStdout(), fs, getDir(), args[0], *parents, *message, *author, who)
	}

	return cmd
}

func commitTreeCmd(out io.Writer, fs afero.Fs, dir, treeName string, parentNames []string, message, authorName, committerName string) error {
	if message == "" {
		return xerrors.New("commit message (-m) is required")
	}

	treeID, err := githash.NewOidFromStr(treeName)
	if err != nil {
		return xerrors.Errorf("not a valid tree id %s", treeName)
	}

	parents := make([]githash.Oid, 0, len(parentNames))
	for _, p := range parentNames {
		oid, err := githash.NewOidFromStr(p)
		if err != nil {
			return xerrors.Errorf("not a valid parent id %s", p)
		}
		parents = append(parents, oid)
	}

	author, err := parseIdentity(authorName)
	if err != nil {
		return xerrors.Errorf("invalid --author: %w", err)
	}
	committer, err := parseIdentity(committerName)
	if err != nil {
		return xerrors.Errorf("invalid --committer: %w", err)
	}

	r, err := openRepositoryFromCwd(fs, dir)
	if err != nil {
		return err
	}

	commitID, err := r.CommitTree(treeID, parents, author, committer, message)
	if err != nil {
		return err
	}

	fmt.Fprint(out, commitID.String())
	return nil
}

// parseIdentity parses a "Name <email>" string into a Signature stamped
// with the current time. gitgo reads no configuration file, so author
// and committer identity are always supplied explicitly as command
// arguments rather than looked up in a gitconfig or the environment.
func parseIdentity(s string) (object.Signature, error) {
	sig, err := object.ParseSignature([]byte(s + " 0 +0000"))
	if err != nil {
		return object.Signature{}, err
	}
	sig.When = time.Now()
	return sig, nil
}
