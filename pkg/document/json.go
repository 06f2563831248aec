package document

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/gjson"
)

// JSONDocument is the addressable view over a JSON document. Paths use
// gjson syntax: dotted keys with optional array indexes and the "#" count
// selector.
type JSONDocument struct {
	raw       []byte
	signature Signature
}

// NewJSON validates raw JSON bytes and builds an addressable view.
func NewJSON(raw []byte) (*JSONDocument, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed json", ErrUnaddressable)
	}
	return &JSONDocument{raw: raw, signature: jsonSignature(gjson.ParseBytes(raw))}, nil
}

// Resolve returns the value(s) at a gjson path. Arrays fan out into a
// multi-value.
func (d *JSONDocument) Resolve(path string) (Value, bool) {
	res := gjson.GetBytes(d.raw, path)
	if !res.Exists() {
		return Value{}, false
	}
	if res.IsArray() {
		var raw []string
		res.ForEach(func(_, v gjson.Result) bool {
			raw = append(raw, v.String())
			return true
		})
		return Value{raw: raw}, true
	}
	return Value{raw: []string{res.String()}}, true
}

// Exists reports whether the path resolves.
func (d *JSONDocument) Exists(path string) bool {
	return gjson.GetBytes(d.raw, path).Exists()
}

// Count returns the element count for array paths, 1 for scalar paths and
// 0 for absent ones.
func (d *JSONDocument) Count(path string) int {
	res := gjson.GetBytes(d.raw, path)
	if !res.Exists() {
		return 0
	}
	if res.IsArray() {
		return int(res.Get("#").Int())
	}
	return 1
}

// LeafPaths returns the dotted path of every scalar leaf, with array
// elements collapsed to their first element's shape, deduplicated and
// sorted.
func (d *JSONDocument) LeafPaths() []string {
	seen := map[string]bool{}
	var walk func(v gjson.Result, prefix string)
	walk = func(v gjson.Result, prefix string) {
		switch {
		case v.IsObject():
			v.ForEach(func(k, child gjson.Result) bool {
				p := k.String()
				if prefix != "" {
					p = prefix + "." + p
				}
				walk(child, p)
				return true
			})
		case v.IsArray():
			arr := v.Array()
			if len(arr) > 0 {
				walk(arr[0], prefix)
			}
		default:
			if prefix != "" {
				seen[prefix] = true
			}
		}
	}
	walk(gjson.ParseBytes(d.raw), "")
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Root returns ""; JSON documents have no named root container.
func (d *JSONDocument) Root() string {
	return ""
}

// Signature returns the structural skeleton hash.
func (d *JSONDocument) Signature() Signature {
	return d.signature
}

// Format reports FormatJSON.
func (d *JSONDocument) Format() Format {
	return FormatJSON
}

// jsonSignature hashes the key skeleton of a JSON value: object keys and
// nesting, with scalar values and array lengths excluded. Keys are sorted
// so producer key order does not change the signature.
func jsonSignature(v gjson.Result) Signature {
	h := xxhash.New()
	var walk func(v gjson.Result, depth int)
	walk = func(v gjson.Result, depth int) {
		switch {
		case v.IsObject():
			var keys []string
			members := map[string]gjson.Result{}
			v.ForEach(func(k, child gjson.Result) bool {
				keys = append(keys, k.String())
				members[k.String()] = child
				return true
			})
			sort.Strings(keys)
			for _, k := range keys {
				h.WriteString(k)
				h.Write([]byte{'\x1f', byte(depth), '\x1e'})
				walk(members[k], depth+1)
			}
		case v.IsArray():
			// Arrays contribute only their first element's shape; length
			// is content, not structure.
			arr := v.Array()
			h.Write([]byte{'[', byte(depth)})
			if len(arr) > 0 {
				walk(arr[0], depth+1)
			}
		}
	}
	walk(v, 0)
	return Signature(h.Sum64())
}
