package fingerprint

import (
	"github.com/eknkc/basex"
)

// base62Alphabet mirrors the alphabet used elsewhere in the ecosystem for
// Base62-encoded identifiers, kept identical so that fingerprint text and
// identifier text are visually consistent in diagnostics.
const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var base62 *basex.Encoding

func init() {
	encoding, err := basex.NewEncoding(base62Alphabet)
	if err != nil {
		panic("unable to initialize base62 encoder")
	}
	base62 = encoding
}

// Base62 renders the fingerprint as a compact Base62 string, used for
// textual cache keys in diagnostics and the fingerprint-store sidecar.
func (f Fingerprint) Base62() string {
	return base62.Encode(f[:])
}

// EncodeBase62 Base62-encodes arbitrary bytes, such as a path-set content
// hash or a weak-fingerprint-derived cache key component.
func EncodeBase62(data []byte) string {
	return base62.Encode(data)
}

// DecodeBase62 reverses EncodeBase62.
func DecodeBase62(text string) ([]byte, error) {
	return base62.Decode(text)
}
