package signing

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
)

var (
	pemBegin = []byte("-----BEGIN ")
	pemEnd   = []byte("-----END ")
	pemDash  = []byte("-----")
)

// ValidatePEM checks the framing of a single PEM block without touching its
// cryptographic content: matching BEGIN/END labels, an allowed label, a
// base64 body and nothing but whitespace around the block. The decoded block
// is returned on success.
func ValidatePEM(data []byte, allowed ...string) (*pem.Block, error) {
	const op = "signing.ValidatePEM"
	fail := func(format string, args ...any) (*pem.Block, error) {
		return nil, errs.New(errs.CodeInvalidKeyMaterial, op, format, args...)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fail("empty key material")
	}
	lines := bytes.Split(bytes.ReplaceAll(trimmed, []byte("\r\n"), []byte("\n")), []byte("\n"))
	if len(lines) < 3 {
		return fail("key material is truncated")
	}

	first, last := lines[0], lines[len(lines)-1]
	if !bytes.HasPrefix(first, pemBegin) || !bytes.HasSuffix(first, pemDash) {
		return fail("missing BEGIN header")
	}
	if !bytes.HasPrefix(last, pemEnd) || !bytes.HasSuffix(last, pemDash) {
		return fail("missing END footer")
	}
	label := string(first[len(pemBegin) : len(first)-len(pemDash)])
	endLabel := string(last[len(pemEnd) : len(last)-len(pemDash)])
	if label != endLabel {
		return fail("header label %q does not match footer label %q", label, endLabel)
	}
	if len(allowed) > 0 && !contains(allowed, label) {
		return fail("unexpected block type %q", label)
	}

	var body bytes.Buffer
	for _, line := range lines[1 : len(lines)-1] {
		line = bytes.TrimSpace(line)
		if bytes.IndexByte(line, ':') >= 0 {
			return fail("encrypted or annotated PEM blocks are not supported")
		}
		body.Write(line)
	}
	if body.Len() == 0 {
		return fail("empty PEM body")
	}
	if _, err := base64.StdEncoding.DecodeString(body.String()); err != nil {
		return fail("PEM body is not valid base64")
	}

	block, rest := pem.Decode(trimmed)
	if block == nil || len(bytes.TrimSpace(rest)) > 0 {
		return fail("key material must contain exactly one PEM block")
	}
	return block, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
