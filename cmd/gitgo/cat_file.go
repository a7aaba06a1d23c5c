package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/internal/gitpath"
	"github.com/tambling/gitgo/object"
	"github.com/tambling/gitgo/refs"
)

func newCatFileCmd(fs afero.Fs, getDir func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat-file (-p|-t|-s) OBJECT",
		Short: "print a repository object's content, type, or size",
		Args:  cobra.ExactArgs(1),
	}

	prettyPrint := cmd.Flags().BoolP("p", "p", false, "pretty-print the object's content")
	typeOnly := cmd.Flags().BoolP("t", "t", false, "print the object's type")
	sizeOnly := cmd.Flags().BoolP("s", "s", false, "print the object's size")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return catFileCmd(cmd.OutOrStdout(), fs, getDir(), args[0], *prettyPrint, *typeOnly, *sizeOnly)
	}

	return cmd
}

func catFileCmd(out io.Writer, fs afero.Fs, dir, objectName string, prettyPrint, typeOnly, sizeOnly bool) error {
	count := 0
	for _, b := range []bool{prettyPrint, typeOnly, sizeOnly} {
		if b {
			count++
		}
	}
	if count != 1 {
		return errors.New("exactly one of -p, -t, -s is required")
	}

	r, err := openRepositoryFromCwd(fs, dir)
	if err != nil {
		return err
	}

	oid, err := resolveObjectName(r.Refs, objectName)
	if err != nil {
		return xerrors.Errorf("not a valid object name %s", objectName)
	}

	typ, payload, err := r.Objects.Read(oid)
	if err != nil {
		return err
	}

	switch {
	case typeOnly:
		fmt.Fprint(out, typ.String())
	case sizeOnly:
		fmt.Fprint(out, strconv.Itoa(len(payload)))
	case prettyPrint:
		if err := prettyPrintObject(out, typ, payload); err != nil {
			return err
		}
	}
	return nil
}

// resolveObjectName turns a 40-hex SHA or a ref shorthand (a full ref
// path, a bare branch name, or "HEAD") into an object id.
func resolveObjectName(store *refs.Store, name string) (githash.Oid, error) {
	if oid, err := githash.NewOidFromStr(name); err == nil {
		return oid, nil
	}

	candidates := []string{name, gitpath.LocalBranch(name), gitpath.LocalTag(name)}
	for _, candidate := range candidates {
		ref, err := store.Resolve(candidate)
		if err == nil {
			return ref.Target(), nil
		}
		if !errors.Is(err, refs.ErrNotFound) {
			return githash.NullOid, err
		}
	}
	return githash.NullOid, refs.ErrNotFound
}

func prettyPrintObject(out io.Writer, typ object.Type, payload []byte) error {
	switch typ {
	case object.TypeBlob:
		_, err := out.Write(payload)
		return err
	case object.TypeTree:
		tree, err := object.ParseTree(payload)
		if err != nil {
			return err
		}
		for _, e := range tree.Entries() {
			fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, e.Mode.Type(), e.ID, e.Name)
		}
		return nil
	case object.TypeCommit:
		commit, err := object.ParseCommit(payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "tree %s\n", commit.TreeID)
		for _, p := range commit.ParentIDs {
			fmt.Fprintf(out, "parent %s\n", p)
		}
		fmt.Fprintf(out, "author %s\n", commit.Author)
		fmt.Fprintf(out, "committer %s\n", commit.Committer)
		fmt.Fprintln(out)
		fmt.Fprint(out, commit.Message)
		return nil
	case object.TypeTag:
		tag, err := object.ParseTag(payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "object %s\n", tag.Target)
		fmt.Fprintf(out, "type %s\n", tag.Type)
		fmt.Fprintf(out, "tag %s\n", tag.Name)
		fmt.Fprintf(out, "tagger %s\n", tag.Tagger)
		fmt.Fprintln(out)
		fmt.Fprint(out, tag.Message)
		return nil
	default:
		return xerrors.Errorf("pretty-print not supported for type %s", typ)
	}
}
