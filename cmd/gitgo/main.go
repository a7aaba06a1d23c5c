// Command gitgo is a minimal Git-compatible client: object storage,
// Smart HTTP clone, and the handful of plumbing/porcelain commands that
// exercise them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tambling/gitgo/internal/pathutil"
)

// exit codes, per the error taxonomy: usage/IO failures are ordinary
// mistakes, protocol and object-store corruption are Git's convention
// of 128.
const (
	exitOK         = 0
	exitUsageOrIO  = 1
	exitCorruption = 128
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gitgo",
		Short:         "a minimal git client implemented in pure Go",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := afero.NewOsFs()

	chdir := pathutil.NewDirPathFlagWithDefault("")
	cmd.PersistentFlags().VarP(chdir, "C", "C", "run as if gitgo was started in <path>")
	getDir := func() string { return chdir.String() }

	cmd.AddCommand(newInitCmd(fs, getDir))
	cmd.AddCommand(newHashObjectCmd(fs, getDir))
	cmd.AddCommand(newCatFileCmd(fs, getDir))
	cmd.AddCommand(newWriteTreeCmd(fs, getDir))
	cmd.AddCommand(newCommitTreeCmd(fs, getDir))
	cmd.AddCommand(newCloneCmd(fs))

	return cmd
}
