package main

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/object"
)

func newHashObjectCmd(fs afero.Fs, getDir func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-object FILE",
		Short: "compute an object id, optionally writing the blob to the store",
		Args:  cobra.ExactArgs(1),
	}

	write := cmd.Flags().BoolP("write", "w", false, "write the object to the object database")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return hashObjectCmd(cmd.OutOrStdout(), fs, getDir(), args[0], *write)
	}

	return cmd
}

func hashObjectCmd(out io.Writer, fs afero.Fs, dir, filePath string, write bool) error {
	content, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return xerrors.Errorf("could not read %s: %w", filePath, err)
	}

	blob := object.NewBlob(content)
	if write {
		r, err := openRepositoryFromCwd(fs, dir)
		if err != nil {
			return err
		}
		if _, err := r.Objects.Write(object.TypeBlob, content); err != nil {
			return xerrors.Errorf("could not write blob: %w", err)
		}
	}

	fmt.Fprint(out, blob.ID().String())
	return nil
}
