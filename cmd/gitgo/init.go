package main

import (
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	gitgo "github.com/tambling/gitgo"
)

func newInitCmd(fs afero.Fs, getDir func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "create an empty git repository",
		Args:  cobra.MaximumNArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		dir := getDir()
		if len(args) == 1 {
			dir = args[0]
		}
		return initCmd(fs, dir)
	}

	return cmd
}

func initCmd(fs afero.Fs, dir string) error {
	if dir == "" {
		pwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = pwd
	}
	_, err := gitgo.Init(fs, dir)
	return err
}
