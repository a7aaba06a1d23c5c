// Package transport implements the Smart HTTP v1 client: reference
// discovery and the upload-pack RPC used by clone. SSH, authentication,
// and protocol v2 are out of scope; a server that only advertises v2 is
// a protocol error.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/pktline"
	"github.com/tambling/gitgo/sideband"
)

const userAgent = "git/1.0"

// Sentinel errors for the Protocol taxonomy (spec §7).
var (
	// ErrHTTPStatus is returned when the server responds with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	// ErrNoHEAD is returned when the advertisement contains no HEAD ref.
	ErrNoHEAD = errors.New("advertisement is missing HEAD")
	// ErrMalformedAdvertisement is returned when the info/refs response
	// doesn't follow the expected pkt-line grammar.
	ErrMalformedAdvertisement = errors.New("malformed ref advertisement")
	// ErrProtocolV2Only is returned when the server only advertises protocol v2.
	ErrProtocolV2Only = errors.New("server only advertises protocol v2")
)

// Advertisement is the result of reference discovery.
type Advertisement struct {
	// Refs maps every advertised ref name to its sha.
	Refs map[string]string
	// HEADTarget is the ref HEAD symbolically points to, if the server
	// advertised "symref=HEAD:<ref>" among its capabilities. Empty if
	// the server didn't advertise it.
	HEADTarget string
	// Capabilities is the set of capability tokens the server advertised.
	Capabilities map[string]struct{}
}

// ensureDotGit appends ".git" to repoURL if not already present (spec §6).
func ensureDotGit(repoURL string) string {
	if strings.HasSuffix(repoURL, ".git") {
		return repoURL
	}
	return repoURL + ".git"
}

// DiscoverRefs performs reference discovery against repoURL's
// info/refs?service=git-upload-pack endpoint.
func DiscoverRefs(ctx context.Context, client *http.Client, repoURL string) (*Advertisement, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := ensureDotGit(repoURL) + "/info/refs?service=git-upload-pack"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerrors.Errorf("could not build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, xerrors.Errorf("GET %s returned %d: %w", url, resp.StatusCode, ErrHTTPStatus)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("could not read response body: %w", err)
	}

	return parseAdvertisement(body)
}

func parseAdvertisement(body []byte) (*Advertisement, error) {
	r := pktline.NewReader(body)
	frames, err := r.ReadAll()
	if err != nil {
		return nil, xerrors.Errorf("could not decode pkt-line stream: %w", err)
	}
	if len(frames) == 0 {
		return nil, xerrors.Errorf("empty response: %w", ErrMalformedAdvertisement)
	}

	i := 0
	if !frames[0].Flush && bytes.HasPrefix(frames[0].Data, []byte("# service=")) {
		i++ // skip the "# service=git-upload-pack" line
		if i < len(frames) && frames[i].Flush {
			i++ // and the flush that follows it
		}
	}

	adv := &Advertisement{
		Refs:         map[string]string{},
		Capabilities: map[string]struct{}{},
	}

	first := true
	for ; i < len(frames); i++ {
		f := frames[i]
		if f.Flush {
			continue
		}
		line := bytes.TrimRight(f.Data, "\n")

		if first {
			first = false
			if nul := bytes.IndexByte(line, 0); nul >= 0 {
				caps := strings.Fields(string(line[nul+1:]))
				line = line[:nul]
				for _, c := range caps {
					adv.Capabilities[c] = struct{}{}
					if strings.HasPrefix(c, "symref=HEAD:") {
						adv.HEADTarget = strings.TrimPrefix(c, "symref=HEAD:")
					}
				}
			}
		}

		sp := bytes.IndexByte(line, ' ')
		if sp < 0 {
			return nil, xerrors.Errorf("malformed ref line %q: %w", line, ErrMalformedAdvertisement)
		}
		sha, name := string(line[:sp]), string(line[sp+1:])
		adv.Refs[name] = sha
	}

	if _, hasV2 := adv.Capabilities["version=2"]; hasV2 && len(adv.Refs) == 0 {
		return nil, ErrProtocolV2Only
	}
	if _, hasHEAD := adv.Refs["HEAD"]; !hasHEAD && adv.HEADTarget == "" {
		return nil, ErrNoHEAD
	}

	return adv, nil
}

// UploadPackRequest builds the want/done pkt-line body sent to
// git-upload-pack, requesting wants[0] with capabilities and any
// additional wants without (spec §4.F).
func UploadPackRequest(wants []string) ([]byte, error) {
	if len(wants) == 0 {
		return nil, xerrors.New("at least one want is required")
	}

	buf := new(bytes.Buffer)
	caps := "multi_ack_detailed side-band-64k ofs-delta agent=gitgo/1.0"
	first, err := pktline.EncodeString(fmt.Sprintf("want %s %s\n", wants[0], caps))
	if err != nil {
		return nil, err
	}
	buf.Write(first)

	for _, w := range wants[1:] {
		line, err := pktline.EncodeString(fmt.Sprintf("want %s\n", w))
		if err != nil {
			return nil, err
		}
		buf.Write(line)
	}

	buf.Write(pktline.Flush)

	done, err := pktline.EncodeString("done\n")
	if err != nil {
		return nil, err
	}
	buf.Write(done)

	return buf.Bytes(), nil
}

// UploadPack issues the upload-pack RPC and returns the raw packfile
// bytes, after side-band demultiplexing if the server honored
// side-band-64k. Side-band progress messages are discarded.
func UploadPack(ctx context.Context, client *http.Client, repoURL string, wants []string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	body, err := UploadPackRequest(wants)
	if err != nil {
		return nil, err
	}

	url := ensureDotGit(repoURL) + "/git-upload-pack"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Errorf("could not build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-git-upload-pack-request")
	req.Header.Set("Accept", "application/x-git-upload-pack-result")

	resp, err := client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, xerrors.Errorf("POST %s returned %d: %w", url, resp.StatusCode, ErrHTTPStatus)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("could not read response body: %w", err)
	}

	return demuxUploadPackResponse(respBody)
}

// demuxUploadPackResponse strips the leading NAK/ACK line mandated by
// the upload-pack protocol and hands the remainder to the side-band
// demuxer. A server that doesn't honor side-band-64k sends the raw pack
// stream un-framed right after that line; a remainder starting with the
// "PACK" magic is returned as-is.
func demuxUploadPackResponse(body []byte) ([]byte, error) {
	r := pktline.NewReader(body)
	nakFrame, ok, err := r.Next()
	if err != nil {
		return nil, xerrors.Errorf("could not decode NAK line: %w", err)
	}
	if !ok || nakFrame.Flush {
		return nil, xerrors.Errorf("response missing NAK: %w", ErrMalformedAdvertisement)
	}
	line := strings.TrimRight(string(nakFrame.Data), "\n")
	if line != "NAK" && !strings.HasPrefix(line, "ACK") {
		return nil, xerrors.Errorf("unexpected line %q instead of NAK: %w", line, ErrMalformedAdvertisement)
	}

	rest := body[len(body)-r.Remaining():]
	if bytes.HasPrefix(rest, []byte("PACK")) {
		return rest, nil
	}
	pack, err := sideband.Demux(rest, nil)
	if err != nil {
		return nil, xerrors.Errorf("could not demultiplex upload-pack response: %w", err)
	}
	return pack, nil
}
