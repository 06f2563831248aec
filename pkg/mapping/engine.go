package mapping

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapsproj/maps/pkg/canonical"
	"github.com/mapsproj/maps/pkg/document"
	"github.com/mapsproj/maps/pkg/profile"
)

// leafLister is the optional adapter capability backing the extra-field
// rule.
type leafLister interface {
	LeafPaths() []string
}

// Engine applies flattened profiles to documents. Stateless apart from
// the shared transform registry; safe for concurrent use across
// documents.
type Engine struct {
	transforms *Registry
	logger     *zap.Logger
}

// NewEngine creates an Engine. registry must be the same one profiles were
// validated against; logger may be nil.
func NewEngine(registry *Registry, logger *zap.Logger) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{transforms: registry, logger: logger}
}

// Transforms returns the engine's registry, for profile validation.
func (e *Engine) Transforms() *Registry {
	return e.transforms
}

// Apply maps a document through a flattened profile into a canonical
// record. Per-field problems never abort the record: they accumulate as
// issues on a best-effort, confidence-scored result. The only error is
// misuse with a profile whose inheritance was never resolved.
func (e *Engine) Apply(p *profile.Profile, doc document.AddressableDocument) (*canonical.Record, error) {
	if !p.Flattened() {
		return nil, fmt.Errorf("profile %q has unresolved inheritance", p.Name)
	}

	rec := &canonical.Record{
		ID:      uuid.NewString(),
		Profile: p.Name,
		Fields:  canonical.FieldTree{},
	}

	var totalRequired, missingRequired float64
	for _, m := range p.Mappings {
		if m.Required {
			totalRequired += m.EffectiveWeight()
		}

		v, ok := doc.Resolve(m.Source)
		if !ok {
			if m.Default != nil {
				e.setValue(rec, m, []string{*m.Default})
				continue
			}
			if m.Required {
				missingRequired += m.EffectiveWeight()
				rec.Issues = append(rec.Issues, canonical.Issue{
					Kind:       canonical.IssueFieldMissing,
					TargetPath: m.Target,
					SourcePath: m.Source,
					Message:    "required source field not found",
				})
			}
			continue
		}
		e.setValue(rec, m, v.All())
	}

	rec.Confidence = confidence(totalRequired, missingRequired)

	e.checkRequiredTargets(p, rec)
	if !p.Rules.AllowExtraFields {
		e.checkExtraFields(p, doc, rec)
	}

	if xdoc, ok := doc.(*document.XMLDocument); ok {
		rec.Nodules = ExtractNodules(xdoc)
	}

	e.logger.Debug("profile applied",
		zap.String("profile", p.Name),
		zap.Float64("confidence", rec.Confidence),
		zap.Int("issues", len(rec.Issues)),
		zap.Int("nodules", len(rec.Nodules)))
	return rec, nil
}

// setValue runs the transform pipeline and coercion over each resolved
// value and writes the result into the field tree. Multi-values become a
// slice at the target path.
func (e *Engine) setValue(rec *canonical.Record, m profile.FieldMapping, raw []string) {
	out := make([]any, 0, len(raw))
	for _, value := range raw {
		transformed, terr := e.runTransforms(m, value)
		if terr != nil {
			rec.Issues = append(rec.Issues, canonical.Issue{
				Kind:       canonical.IssueTransformFailed,
				TargetPath: m.Target,
				SourcePath: m.Source,
				Message:    terr.Error(),
			})
			// Keep the value as it stood before the failing transform,
			// uncoerced.
			out = append(out, transformed)
			continue
		}
		coerced, cerr := coerce(transformed, m.Type)
		if cerr != nil {
			rec.Issues = append(rec.Issues, canonical.Issue{
				Kind:       canonical.IssueCoercionFailed,
				TargetPath: m.Target,
				SourcePath: m.Source,
				Message:    cerr.Error(),
			})
			// Raw resolved value stays on the record, annotated by the
			// issue as unconverted.
			out = append(out, transformed)
			continue
		}
		out = append(out, coerced)
	}
	if len(out) == 1 {
		rec.Fields.Set(m.Target, out[0])
		return
	}
	rec.Fields.Set(m.Target, out)
}

// runTransforms applies the mapping's pipeline in order. On failure it
// returns the value as of the last successful step together with the
// error.
func (e *Engine) runTransforms(m profile.FieldMapping, value string) (string, error) {
	for _, ts := range m.Transforms {
		next, err := e.transforms.apply(ts.Name, value, ts.Params)
		if err != nil {
			return value, fmt.Errorf("transform %s: %w", ts.Name, err)
		}
		value = next
	}
	return value, nil
}

// checkRequiredTargets records a rule violation for every required target
// path absent from the finished tree, unless a field_missing issue already
// explains it.
func (e *Engine) checkRequiredTargets(p *profile.Profile, rec *canonical.Record) {
	explained := map[string]bool{}
	for _, is := range rec.Issues {
		if is.Kind == canonical.IssueFieldMissing {
			explained[is.TargetPath] = true
		}
	}
	for _, rt := range p.Rules.RequiredTargets {
		if explained[rt] {
			continue
		}
		if _, ok := rec.Fields.Get(rt); ok {
			continue
		}
		if subtreePopulated(rec.Fields, rt) {
			continue
		}
		rec.Issues = append(rec.Issues, canonical.Issue{
			Kind:       canonical.IssueRuleViolation,
			TargetPath: rt,
			Message:    "required target not populated",
		})
	}
}

func subtreePopulated(tree canonical.FieldTree, target string) bool {
	prefix := target + "."
	for _, leaf := range tree.Leaves() {
		if strings.HasPrefix(leaf, prefix) {
			return true
		}
	}
	return false
}

// checkExtraFields flags document leaves outside every mapping source.
// Reading-session subtrees are covered by nodule extraction and exempt.
func (e *Engine) checkExtraFields(p *profile.Profile, doc document.AddressableDocument, rec *canonical.Record) {
	ll, ok := doc.(leafLister)
	if !ok {
		return
	}
	sep := "/"
	if doc.Format() == document.FormatJSON {
		sep = "."
	}

	covered := make(map[string]bool, len(p.Mappings))
	for _, m := range p.Mappings {
		src, _, _ := strings.Cut(m.Source, "@")
		covered[strings.TrimSuffix(src, "/")] = true
	}
	prefixes := []string{"readingSession" + sep, "unblindedReadNodule" + sep}

	for _, leaf := range ll.LeafPaths() {
		if covered[leaf] {
			continue
		}
		exempt := false
		for _, pre := range prefixes {
			if strings.HasPrefix(leaf, pre) {
				exempt = true
				break
			}
		}
		if exempt {
			continue
		}
		rec.Issues = append(rec.Issues, canonical.Issue{
			Kind:       canonical.IssueExtraField,
			SourcePath: leaf,
			Message:    "field not covered by any mapping and extra fields are forbidden",
		})
	}
}

// confidence is 1 minus the missing share of required importance weight,
// clamped to [0,1]. A profile with no required mappings is always fully
// confident.
func confidence(totalRequired, missingRequired float64) float64 {
	if totalRequired == 0 {
		return 1
	}
	c := 1 - missingRequired/totalRequired
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
