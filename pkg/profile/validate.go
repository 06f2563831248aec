package profile

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ValidationError reports a malformed profile. It is raised at load time
// only; the mapping engine never sees an invalid profile.
type ValidationError struct {
	Profile string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile %q invalid: %v", e.Profile, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransformChecker reports whether a named transformation is registered.
// The mapping engine's registry satisfies it.
type TransformChecker interface {
	Has(name string) bool
}

// Validate checks a single profile's internal consistency: naming, data
// types, duplicate targets, required targets actually mapped, and
// transform names known to the checker (nil skips transform checking).
// All problems are aggregated into one *ValidationError.
func Validate(p *Profile, transforms TransformChecker) error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if p.Name == "" {
		add("profile name is required")
	}
	if p.FileType == "" {
		add("file type is required")
	}
	if len(p.Mappings) == 0 {
		add("profile must define at least one field mapping")
	}

	targets := make(map[string]bool, len(p.Mappings))
	for i, m := range p.Mappings {
		if m.Source == "" {
			add("mapping %d: source is required", i)
		}
		if m.Target == "" {
			add("mapping %d: target is required", i)
		}
		if m.Target != "" && targets[m.Target] {
			add("duplicate target path %q", m.Target)
		}
		targets[m.Target] = true
		if !knownTypes[m.Type] {
			add("mapping %d: unknown data type %q", i, m.Type)
		}
		if m.Weight < 0 {
			add("mapping %d: negative weight", i)
		}
		for _, ts := range m.Transforms {
			if ts.Name == "" {
				add("mapping %d: transform with empty name", i)
				continue
			}
			if transforms != nil && !transforms.Has(ts.Name) {
				add("mapping %d: unknown transformation %q", i, ts.Name)
			}
		}
	}

	for _, rt := range p.Rules.RequiredTargets {
		if !targets[rt] && !coveredByPrefix(targets, rt) {
			add("required target %q is not mapped", rt)
		}
	}

	if errs != nil {
		return &ValidationError{Profile: p.Name, Err: errs}
	}
	return nil
}

// coveredByPrefix reports whether a required target names a subtree that
// some mapping writes into, e.g. required "nodule" covered by a mapping to
// "nodule.id".
func coveredByPrefix(targets map[string]bool, required string) bool {
	prefix := required + "."
	for t := range targets {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// Flatten resolves a profile's inheritance chain into a single mapping
// list. Parent mappings come first; a child mapping sharing a target path
// supersedes the parent's (last-defined-wins). Validation rules merge with
// child precedence: child required targets are appended, AllowExtraFields
// takes the child's value. lookup resolves parent names; a missing parent
// or a cycle is a *ValidationError.
//
// Flatten is called once at load time. The returned profile is a copy;
// inputs are not mutated.
func Flatten(p *Profile, lookup func(name string) (*Profile, bool)) (*Profile, error) {
	chain := []*Profile{p}
	seen := map[string]bool{p.Name: true}
	for cur := p; cur.Parent != ""; {
		if seen[cur.Parent] {
			return nil, &ValidationError{
				Profile: p.Name,
				Err:     fmt.Errorf("circular inheritance through %q", cur.Parent),
			}
		}
		parent, ok := lookup(cur.Parent)
		if !ok {
			return nil, &ValidationError{
				Profile: p.Name,
				Err:     fmt.Errorf("parent profile %q not found", cur.Parent),
			}
		}
		seen[cur.Parent] = true
		chain = append(chain, parent)
		cur = parent
	}

	// Walk root-first so later (more derived) mappings override.
	flat := &Profile{
		Name:        p.Name,
		FileType:    p.FileType,
		Description: p.Description,
		Case:        p.Case,
		Rules:       p.Rules,
		flattened:   true,
	}
	byTarget := map[string]int{}
	seenTargets := map[string]bool{}
	var requiredTargets []string
	for i := len(chain) - 1; i >= 0; i-- {
		// Overriding a target across the chain is inheritance; declaring
		// it twice in one profile is a malformed profile.
		local := make(map[string]bool, len(chain[i].Mappings))
		for _, m := range chain[i].Mappings {
			if local[m.Target] {
				return nil, &ValidationError{
					Profile: chain[i].Name,
					Err:     fmt.Errorf("duplicate target path %q", m.Target),
				}
			}
			local[m.Target] = true
			if idx, ok := byTarget[m.Target]; ok {
				flat.Mappings[idx] = m
				continue
			}
			byTarget[m.Target] = len(flat.Mappings)
			flat.Mappings = append(flat.Mappings, m)
		}
		for _, rt := range chain[i].Rules.RequiredTargets {
			if !seenTargets[rt] {
				seenTargets[rt] = true
				requiredTargets = append(requiredTargets, rt)
			}
		}
	}
	flat.Rules.RequiredTargets = requiredTargets
	return flat, nil
}

// Load parses, flattens, and validates one profile document against the
// given lookup and transform checker. This is the only constructor the
// rest of the system should use.
func Load(raw []byte, lookup func(name string) (*Profile, bool), transforms TransformChecker) (*Profile, error) {
	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	flat, err := Flatten(p, lookup)
	if err != nil {
		return nil, err
	}
	if err := Validate(flat, transforms); err != nil {
		return nil, err
	}
	return flat, nil
}
