package main

import (
	"context"
	"io"
	"net/http"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	gitgo "github.com/tambling/gitgo"
)

func newCloneCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone URL [DIRECTORY]",
		Short: "clone a repository over Smart HTTP",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		dir := defaultCloneDir(args[0])
		if len(args) == 2 {
			dir = args[1]
		}
		return cloneCmd(cmd.OutOrStdout(), fs, args[0], dir)
	}

	return cmd
}

func cloneCmd(out io.Writer, fs afero.Fs, repoURL, dir string) error {
	_, err := gitgo.Clone(context.Background(), fs, http.DefaultClient, repoURL, dir)
	return err
}

// defaultCloneDir derives the target directory from the last path
// segment of a repository URL, stripping a trailing ".git" the way the
// reference client does.
func defaultCloneDir(repoURL string) string {
	start := 0
	for i := len(repoURL) - 1; i >= 0; i-- {
		if repoURL[i] == '/' {
			start = i + 1
			break
		}
	}
	name := repoURL[start:]
	const suffix = ".git"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		name = name[:len(name)-len(suffix)]
	}
	return name
}
