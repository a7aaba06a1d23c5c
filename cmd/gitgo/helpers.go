package main

import (
	"errors"
	"os"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	gitgo "github.com/tambling/gitgo"
	"github.com/tambling/gitgo/internal/gitpath"
	"github.com/tambling/gitgo/odb"
	"github.com/tambling/gitgo/packfile"
	"github.com/tambling/gitgo/pktline"
	"github.com/tambling/gitgo/refs"
	"github.com/tambling/gitgo/sideband"
	"github.com/tambling/gitgo/transport"
)

// exitCodeFor maps an error to the exit code described in the error
// taxonomy: protocol, pack, and object corruption map to 128, everything
// else is an ordinary usage or I/O failure (1).
func exitCodeFor(err error) int {
	var protocolOrCorruption = []error{
		packfile.ErrInvalidMagic,
		packfile.ErrInvalidVersion,
		packfile.ErrTruncated,
		packfile.ErrUnknownObjectType,
		packfile.ErrBaseNotFound,
		packfile.ErrForwardReference,
		packfile.ErrSizeMismatch,
		packfile.ErrChecksumMismatch,
		packfile.ErrBadDeltaOpcode,
		odb.ErrNotFound,
		odb.ErrCorrupt,
		transport.ErrHTTPStatus,
		transport.ErrNoHEAD,
		transport.ErrMalformedAdvertisement,
		transport.ErrProtocolV2Only,
		refs.ErrNotFound,
		refs.ErrInvalid,
		refs.ErrCircular,
		pktline.ErrInvalidFrame,
		sideband.ErrRemote,
		sideband.ErrUnknownBand,
	}
	for _, sentinel := range protocolOrCorruption {
		if errors.Is(err, sentinel) {
			return exitCorruption
		}
	}
	return exitUsageOrIO
}

// loadRepository opens the repository rooted at dir.
func loadRepository(fs afero.Fs, dir string) (*gitgo.Repository, error) {
	r, err := gitgo.Open(fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("could not open repository: %w", err)
	}
	return r, nil
}

// openRepositoryFromCwd locates the repository containing start (or,
// when start is empty, the current directory), the way a "gitgo"
// subcommand is expected to run from anywhere inside a working tree,
// honoring a "-C <path>" override, and opens it.
func openRepositoryFromCwd(fs afero.Fs, start string) (*gitgo.Repository, error) {
	if start == "" {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		start = pwd
	}
	root, err := gitpath.FindRoot(fs, start)
	if err != nil {
		return nil, xerrors.Errorf("could not locate repository: %w", err)
	}
	return loadRepository(fs, root)
}
