package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/internal/readutil"
)

// Signature is the author/committer identity attached to a commit: a
// name, an email, and the instant it was recorded.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// IsZero reports whether s is the zero Signature.
func (s Signature) IsZero() bool {
	return s.Name == "" && s.Email == "" && s.When.IsZero()
}

// String renders the signature as it appears in a commit's header:
// "Name <email> <unix-seconds> <±HHMM>".
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format("-0700"))
}

// ParseSignature parses a "Name <email> seconds ±HHMM" line as found in
// a commit or tag header.
func ParseSignature(b []byte) (Signature, error) {
	var sig Signature

	nameRaw := readutil.ReadTo(b, '<')
	if nameRaw == nil {
		return sig, xerrors.Errorf("missing email: %w", ErrSignatureInvalid)
	}
	sig.Name = strings.TrimSpace(string(nameRaw))
	offset := len(nameRaw) + 1 // skip '<'

	emailRaw := readutil.ReadTo(b[offset:], '>')
	if emailRaw == nil {
		return sig, xerrors.Errorf("unterminated email: %w", ErrSignatureInvalid)
	}
	sig.Email = string(emailRaw)
	offset += len(emailRaw) + 2 // skip "> "

	if offset >= len(b) {
		return sig, xerrors.Errorf("missing timestamp: %w", ErrSignatureInvalid)
	}
	fields := strings.Fields(string(b[offset:]))
	if len(fields) != 2 {
		return sig, xerrors.Errorf("expected '<seconds> <offset>', got %q: %w", b[offset:], ErrSignatureInvalid)
	}
	seconds, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return sig, xerrors.Errorf("invalid timestamp %q: %w", fields[0], ErrSignatureInvalid)
	}
	t, err := time.Parse("-0700", fields[1])
	if err != nil {
		return sig, xerrors.Errorf("invalid timezone %q: %w", fields[1], ErrSignatureInvalid)
	}
	sig.When = time.Unix(seconds, 0).In(t.Location())

	return sig, nil
}

// Commit is a parsed commit object.
type Commit struct {
	TreeID    githash.Oid
	ParentIDs []githash.Oid
	Author    Signature
	Committer Signature
	GPGSig    string
	Message   string
}

// Encode returns the canonical commit payload: a header block of
// "key value\n" lines, a blank line, then the free-text message.
func (c *Commit) Encode() []byte {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "tree %s\n", c.TreeID.String())
	for _, p := range c.ParentIDs {
		fmt.Fprintf(buf, "parent %s\n", p.String())
	}
	fmt.Fprintf(buf, "author %s\n", c.Author.String())
	fmt.Fprintf(buf, "committer %s\n", c.Committer.String())
	if c.GPGSig != "" {
		fmt.Fprintf(buf, "gpgsig %s\n", c.GPGSig)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// ToObject returns the Object wrapping c's canonical encoding.
func (c *Commit) ToObject() *Object {
	return New(TypeCommit, c.Encode())
}

// ParseCommit decodes a commit payload into its structured form.
func ParseCommit(payload []byte) (*Commit, error) {
	c := &Commit{}
	offset := 0
	for {
		line := readutil.ReadTo(payload[offset:], '\n')
		if line == nil {
			return nil, xerrors.Errorf("unterminated header: %w", ErrCommitInvalid)
		}
		offset += len(line) + 1

		if len(line) == 0 {
			c.Message = string(payload[offset:])
			break
		}

		kv := bytes.SplitN(line, []byte{' '}, 2)
		if len(kv) != 2 {
			return nil, xerrors.Errorf("malformed header line %q: %w", line, ErrCommitInvalid)
		}
		var err error
		switch string(kv[0]) {
		case "tree":
			c.TreeID, err = githash.NewOidFromChars(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("invalid tree id %q: %w", kv[1], ErrCommitInvalid)
			}
		case "parent":
			var id githash.Oid
			id, err = githash.NewOidFromChars(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("invalid parent id %q: %w", kv[1], ErrCommitInvalid)
			}
			c.ParentIDs = append(c.ParentIDs, id)
		case "author":
			c.Author, err = ParseSignature(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("invalid author: %w", err)
			}
		case "committer":
			c.Committer, err = ParseSignature(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("invalid committer: %w", err)
			}
		case "gpgsig":
			begin := string(kv[1]) + "\n"
			const end = "-----END PGP SIGNATURE-----"
			i := bytes.Index(payload[offset:], []byte(end))
			if i < 0 {
				return nil, xerrors.Errorf("unterminated gpgsig: %w", ErrCommitInvalid)
			}
			c.GPGSig = begin + string(payload[offset:offset+i]) + end
			offset += i + len(end) + 1
		}
	}

	if c.TreeID.IsZero() {
		return nil, xerrors.Errorf("missing tree: %w", ErrCommitInvalid)
	}
	if c.Author.IsZero() {
		return nil, xerrors.Errorf("missing author: %w", ErrCommitInvalid)
	}
	return c, nil
}
