// Package mapping applies flattened profiles to addressable documents,
// producing canonical records. It owns the transformation registry, type
// coercion, confidence scoring, and the nodule extraction used for
// multi-reader radiology documents.
package mapping

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TransformFunc is a pure, named transformation over a resolved field
// value. Params come verbatim from the profile document.
type TransformFunc func(value string, params map[string]string) (string, error)

// Registry holds named transformations. The default registry carries the
// built-in set; callers may register additional pure functions before any
// profile is loaded.
type Registry struct {
	funcs map[string]TransformFunc
}

// NewRegistry returns a registry pre-populated with the built-in
// transformations.
func NewRegistry() *Registry {
	r := &Registry{funcs: map[string]TransformFunc{}}
	for name, fn := range builtins {
		r.funcs[name] = fn
	}
	return r
}

// Has reports whether a transformation name is registered. Satisfies
// profile.TransformChecker.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Register adds a transformation. Re-registering a name is an error; the
// built-ins are part of the profile contract and must not change meaning.
func (r *Registry) Register(name string, fn TransformFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("transform registration requires a name and a function")
	}
	if _, dup := r.funcs[name]; dup {
		return fmt.Errorf("transform %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Names returns the registered transformation names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// apply runs one named transformation. Unknown names cannot reach here:
// profile validation rejects them at load time.
func (r *Registry) apply(name, value string, params map[string]string) (string, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return value, fmt.Errorf("unknown transformation %q", name)
	}
	return fn(value, params)
}

// dateLayouts are tried in order by parse_date when the profile does not
// pin a layout.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"20060102",
}

var (
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

var builtins = map[string]TransformFunc{
	"trim_whitespace": func(v string, _ map[string]string) (string, error) {
		return strings.TrimSpace(v), nil
	},
	"uppercase": func(v string, _ map[string]string) (string, error) {
		return strings.ToUpper(v), nil
	},
	"lowercase": func(v string, _ map[string]string) (string, error) {
		return strings.ToLower(v), nil
	},
	// parse_date normalizes a date string to RFC 3339 (or the "out"
	// layout). Params: layout (input layout; tries common layouts when
	// absent), out (output layout, default RFC 3339).
	"parse_date": func(v string, params map[string]string) (string, error) {
		layouts := dateLayouts
		if l := params["layout"]; l != "" {
			layouts = []string{l}
		}
		var t time.Time
		var err error
		for _, l := range layouts {
			t, err = time.Parse(l, v)
			if err == nil {
				break
			}
		}
		if err != nil {
			return v, fmt.Errorf("parse date %q: no layout matched", v)
		}
		out := params["out"]
		if out == "" {
			out = time.RFC3339
		}
		return t.Format(out), nil
	},
	// regex_extract returns the first capture group (or whole match when
	// the pattern has no groups). Params: pattern.
	"regex_extract": func(v string, params map[string]string) (string, error) {
		pat := params["pattern"]
		if pat == "" {
			return v, fmt.Errorf("regex_extract requires a pattern param")
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return v, fmt.Errorf("regex_extract: %w", err)
		}
		m := re.FindStringSubmatch(v)
		if m == nil {
			return v, fmt.Errorf("regex_extract: %q did not match", pat)
		}
		if len(m) > 1 {
			return m[1], nil
		}
		return m[0], nil
	},
	// extract_numbers returns the first numeric token in the value.
	"extract_numbers": func(v string, _ map[string]string) (string, error) {
		m := numberRe.FindString(v)
		if m == "" {
			return v, fmt.Errorf("no number in %q", v)
		}
		return m, nil
	},
	// split_string splits on sep and returns the index-th part. Params:
	// sep (default ","), index (default 0).
	"split_string": func(v string, params map[string]string) (string, error) {
		sep := params["sep"]
		if sep == "" {
			sep = ","
		}
		idx := 0
		if s := params["index"]; s != "" {
			var err error
			idx, err = strconv.Atoi(s)
			if err != nil {
				return v, fmt.Errorf("split_string: bad index %q", s)
			}
		}
		parts := strings.Split(v, sep)
		if idx < 0 || idx >= len(parts) {
			return v, fmt.Errorf("split_string: index %d out of range for %d parts", idx, len(parts))
		}
		return parts[idx], nil
	},
	// concatenate wraps the value with prefix/suffix params.
	"concatenate": func(v string, params map[string]string) (string, error) {
		return params["prefix"] + v + params["suffix"], nil
	},
	// lookup maps enumerated source values through the params table. A
	// "default" param substitutes for unmatched values; without one an
	// unmatched value is an error.
	"lookup": func(v string, params map[string]string) (string, error) {
		if mapped, ok := params[v]; ok {
			return mapped, nil
		}
		if def, ok := params["default"]; ok {
			return def, nil
		}
		return v, fmt.Errorf("lookup: no entry for %q", v)
	},
	// unit_convert multiplies a numeric value by the factor param.
	"unit_convert": func(v string, params map[string]string) (string, error) {
		factor, err := strconv.ParseFloat(params["factor"], 64)
		if err != nil {
			return v, fmt.Errorf("unit_convert: bad factor %q", params["factor"])
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return v, fmt.Errorf("unit_convert: %q is not numeric", v)
		}
		return strconv.FormatFloat(f*factor, 'f', -1, 64), nil
	},
}
