package object

import (
	"bytes"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/internal/readutil"
)

// Tag is a parsed annotated tag object. gitgo never produces tags
// itself (spec §3: "not produced by this system"), but a fetched pack
// may legitimately contain one and it must round-trip through the
// store.
type Tag struct {
	Target  githash.Oid
	Type    Type
	Name    string
	Tagger  Signature
	GPGSig  string
	Message string
}

// Encode returns the canonical tag payload.
func (t *Tag) Encode() []byte {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "object %s\n", t.Target.String())
	fmt.Fprintf(buf, "type %s\n", t.Type.String())
	fmt.Fprintf(buf, "tag %s\n", t.Name)
	fmt.Fprintf(buf, "tagger %s\n", t.Tagger.String())
	if t.GPGSig != "" {
		fmt.Fprintf(buf, "gpgsig %s\n", t.GPGSig)
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// ToObject returns the Object wrapping t's canonical encoding.
func (t *Tag) ToObject() *Object {
	return New(TypeTag, t.Encode())
}

// ParseTag decodes a tag payload into its structured form.
func ParseTag(payload []byte) (*Tag, error) {
	t := &Tag{}
	offset := 0
	for {
		line := readutil.ReadTo(payload[offset:], '\n')
		if line == nil {
			return nil, xerrors.Errorf("unterminated header: %w", ErrTagInvalid)
		}
		offset += len(line) + 1

		if len(line) == 0 {
			t.Message = string(payload[offset:])
			break
		}

		kv := bytes.SplitN(line, []byte{' '}, 2)
		if len(kv) != 2 {
			return nil, xerrors.Errorf("malformed header line %q: %w", line, ErrTagInvalid)
		}
		var err error
		switch string(kv[0]) {
		case "object":
			t.Target, err = githash.NewOidFromChars(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("invalid target id %q: %w", kv[1], ErrTagInvalid)
			}
		case "type":
			t.Type, err = NewTypeFromString(string(kv[1]))
			if err != nil {
				return nil, xerrors.Errorf("invalid target type %q: %w", kv[1], ErrTagInvalid)
			}
		case "tag":
			t.Name = string(kv[1])
		case "tagger":
			t.Tagger, err = ParseSignature(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("invalid tagger: %w", err)
			}
		case "gpgsig":
			begin := string(kv[1]) + "\n"
			const end = "-----END PGP SIGNATURE-----"
			i := bytes.Index(payload[offset:], []byte(end))
			if i < 0 {
				return nil, xerrors.Errorf("unterminated gpgsig: %w", ErrTagInvalid)
			}
			t.GPGSig = begin + string(payload[offset:offset+i]) + end
			offset += i + len(end) + 1
		}
	}

	if t.Target.IsZero() {
		return nil, xerrors.Errorf("missing object: %w", ErrTagInvalid)
	}
	return t, nil
}
