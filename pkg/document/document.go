// Package document provides format-polymorphic, addressable views over raw
// annotation documents. An AddressableDocument exposes path-based field
// resolution so the structure detector and mapping engine never touch
// format-specific parsing themselves.
//
// The path grammar depends on the format chosen at construction time:
//
//   - XML:  slash-separated local element names relative to the root,
//     e.g. "ResponseHeader/StudyInstanceUID". A trailing "@name"
//     selects an attribute. Namespaces are stripped.
//   - JSON: gjson dotted paths, e.g. "header.study_instance_uid".
//   - CSV:  a column name from the header row.
package document

import (
	"errors"
	"fmt"
)

// Format identifies the source document format.
type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnaddressable marks documents that cannot be parsed into an
// addressable view at all. Errors wrapping it are fatal for the document;
// everything past construction is non-fatal.
var ErrUnaddressable = errors.New("document cannot be addressed")

// Value is the result of resolving a path. Source fields may be repeated
// (XML elements, JSON arrays), so a Value carries one or many raw strings.
type Value struct {
	raw []string
}

// NewValue builds a Value from raw strings.
func NewValue(raw ...string) Value {
	return Value{raw: raw}
}

// First returns the first raw string, or "" when empty.
func (v Value) First() string {
	if len(v.raw) == 0 {
		return ""
	}
	return v.raw[0]
}

// All returns every raw string in document order.
func (v Value) All() []string {
	return v.raw
}

// Len returns the number of resolved values.
func (v Value) Len() int {
	return len(v.raw)
}

// AddressableDocument is the capability interface consumed by the detector
// and the mapping engine. Implementations are immutable after construction
// and safe for concurrent use.
type AddressableDocument interface {
	// Resolve returns the value(s) at path. ok is false when the path does
	// not exist in the document.
	Resolve(path string) (Value, bool)
	// Exists reports whether the path resolves to at least one value.
	Exists(path string) bool
	// Count returns how many nodes match path. Used by the detector for
	// reading-session-count checks; formats without repeated nodes return
	// 0 or 1.
	Count(path string) int
	// Root returns the name of the root container, when the format has
	// one (the XML root element). Formats without a named root return "".
	Root() string
	// Signature returns the structural signature of the document: a hash
	// over the tag/nesting skeleton with all content excluded.
	Signature() Signature
	// Format reports the source format.
	Format() Format
}

// New constructs an addressable view over raw bytes for the given format.
// A document that cannot be parsed returns an error wrapping
// ErrUnaddressable.
func New(raw []byte, format Format) (AddressableDocument, error) {
	switch format {
	case FormatXML:
		return NewXML(raw)
	case FormatJSON:
		return NewJSON(raw)
	case FormatCSV:
		return NewCSV(raw)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrUnaddressable, format)
	}
}
