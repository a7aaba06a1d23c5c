package main

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newWriteTreeCmd(fs afero.Fs, getDir func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write-tree",
		Short: "write the working directory as a tree object",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return writeTreeCmd(cmd.OutOrStdout(), fs, getDir())
	}

	return cmd
}

func writeTreeCmd(out io.Writer, fs afero.Fs, dir string) error {
	r, err := openRepositoryFromCwd(fs, dir)
	if err != nil {
		return err
	}

	oid, err := r.WriteTree()
	if err != nil {
		return err
	}

	fmt.Fprint(out, oid.String())
	return nil
}
