// Package canonical defines the normalized record model produced by the
// mapping engine. A Record is the single output shape shared by all source
// formats: a nested field tree addressed by dotted paths, optional nodule
// annotations for multi-reader radiology documents, a confidence score, and
// the list of per-field issues accumulated during extraction.
//
// Records are created by the mapping engine and must be treated as immutable
// by callers once returned.
package canonical

import (
	"fmt"
	"sort"
	"strings"
)

// IssueKind classifies a non-fatal problem recorded during mapping.
type IssueKind string

const (
	// IssueFieldMissing means a required source field could not be resolved.
	IssueFieldMissing IssueKind = "field_missing"
	// IssueCoercionFailed means a resolved value could not be converted to
	// the mapping's declared type. The raw value is kept in the record.
	IssueCoercionFailed IssueKind = "coercion_failed"
	// IssueTransformFailed means a transformation returned an error for a
	// resolved value. The value prior to the failing transform is kept.
	IssueTransformFailed IssueKind = "transform_failed"
	// IssueExtraField means the document carries a field outside the
	// profile's mappings and the profile forbids extra fields.
	IssueExtraField IssueKind = "extra_field"
	// IssueRuleViolation means a profile-level validation rule failed after
	// all mappings were applied.
	IssueRuleViolation IssueKind = "rule_violation"
)

// Issue is one non-fatal problem found while mapping a document. Issues are
// values, not errors: the engine always returns a best-effort record and
// leaves interpretation to the caller.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	TargetPath string    `json:"target_path,omitempty"`
	SourcePath string    `json:"source_path,omitempty"`
	Message    string    `json:"message"`
}

func (i Issue) String() string {
	if i.TargetPath != "" {
		return fmt.Sprintf("%s %s: %s", i.Kind, i.TargetPath, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// Record is a normalized document. Fields is a nested tree keyed by path
// segment; leaves hold coerced values (string, int64, float64, bool, or a
// raw string when coercion failed).
type Record struct {
	ID         string             `json:"id"`
	Case       string             `json:"case,omitempty"`
	Profile    string             `json:"profile"`
	Fields     FieldTree          `json:"fields"`
	Nodules    []NoduleAnnotation `json:"nodules,omitempty"`
	Confidence float64            `json:"confidence"`
	Issues     []Issue            `json:"issues,omitempty"`
}

// Complete reports whether every mapping resolved cleanly: full confidence
// and no recorded issues.
func (r *Record) Complete() bool {
	return r.Confidence == 1.0 && len(r.Issues) == 0
}

// IssuesOfKind returns the subset of issues with the given kind.
func (r *Record) IssuesOfKind(kind IssueKind) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

// FieldTree is a nested map addressed by dotted paths, e.g.
// "document_metadata.study_instance_uid". Interior nodes are FieldTree
// values; leaves are scalars.
type FieldTree map[string]any

// Set writes value at the dotted path, creating interior nodes as needed.
// Setting a path through an existing leaf replaces the leaf with a subtree.
func (t FieldTree) Set(path string, value any) {
	segs := strings.Split(path, ".")
	node := t
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(FieldTree)
		if !ok {
			child = FieldTree{}
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = value
}

// Get returns the value at the dotted path.
func (t FieldTree) Get(path string) (any, bool) {
	segs := strings.Split(path, ".")
	node := t
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(FieldTree)
		if !ok {
			return nil, false
		}
		node = child
	}
	v, ok := node[segs[len(segs)-1]]
	return v, ok
}

// Leaves returns every leaf path in the tree, sorted.
func (t FieldTree) Leaves() []string {
	var out []string
	t.walk("", &out)
	sort.Strings(out)
	return out
}

func (t FieldTree) walk(prefix string, out *[]string) {
	for k, v := range t {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		if child, ok := v.(FieldTree); ok {
			child.walk(p, out)
			continue
		}
		*out = append(*out, p)
	}
}
