package document

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Signature is a hash of a document's structural skeleton: element names
// and nesting, with all text content and attribute values excluded. Two
// documents with identical structure share a signature, which makes it a
// stable cache key for detection results.
type Signature uint64

func (s Signature) String() string {
	return fmt.Sprintf("%016x", uint64(s))
}

// signatureBuilder accumulates skeleton tokens into an xxhash digest.
type signatureBuilder struct {
	h *xxhash.Digest
}

func newSignatureBuilder() *signatureBuilder {
	return &signatureBuilder{h: xxhash.New()}
}

// push records entering a named node at the given depth.
func (b *signatureBuilder) push(name string, depth int) {
	// Depth byte keeps <a><b/></a> distinct from <a/><b/>.
	b.h.WriteString(name)
	b.h.Write([]byte{'\x1f', byte(depth), '\x1e'})
}

func (b *signatureBuilder) sum() Signature {
	return Signature(b.h.Sum64())
}
