package detector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mapsproj/maps/pkg/document"
)

// Bonus weights applied on top of the required-field fraction. The score
// is capped at 1 after bonuses.
const (
	rootTagBonus      = 0.10
	sessionCountBonus = 0.10
)

// Result is the outcome of classifying one document. Case is empty when no
// registered case cleared its confidence floor; Best then names the
// highest-scoring candidate so callers can route the document for manual
// classification.
type Result struct {
	// Case is the committed parse case ID, or "" for none.
	Case string `json:"case,omitempty"`
	// Confidence is the committed case's match score, or 0 for none.
	Confidence float64 `json:"confidence"`
	// Signature is the document's structural signature.
	Signature document.Signature `json:"signature"`
	// Best and BestConfidence describe the strongest candidate when no
	// case was committed.
	Best           string  `json:"best,omitempty"`
	BestConfidence float64 `json:"best_confidence,omitempty"`
	// FromCache reports whether the result was served from the signature
	// cache.
	FromCache bool `json:"-"`
}

// DetectionError is fatal: the document could not be addressed at all.
type DetectionError struct {
	Cause error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection failed: %v", e.Cause)
}

func (e *DetectionError) Unwrap() error {
	return e.Cause
}

// Detector classifies addressable documents against a case registry, with
// a shared bounded signature cache. Safe for concurrent use.
type Detector struct {
	registry *Registry
	cache    *Cache
	logger   *zap.Logger
	floor    float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithConfidenceFloor sets the detector-wide confidence floor applied to
// cases that do not declare their own. Zero keeps the package default.
func WithConfidenceFloor(floor float64) Option {
	return func(d *Detector) { d.floor = floor }
}

// New creates a Detector. cache may be nil to disable memoization; logger
// may be nil for no logging.
func New(registry *Registry, cache *Cache, logger *zap.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Detector{registry: registry, cache: cache, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// floorFor resolves the effective confidence floor: the case's own
// override wins, then the detector-wide floor, then the package default.
func (d *Detector) floorFor(c ParseCase) float64 {
	if c.ConfidenceFloor > 0 {
		return c.ConfidenceFloor
	}
	if d.floor > 0 {
		return d.floor
	}
	return DefaultConfidenceFloor
}

// DetectBytes parses raw bytes for the given format and classifies the
// resulting document. Parse failure returns a *DetectionError.
func (d *Detector) DetectBytes(raw []byte, format document.Format) (Result, error) {
	doc, err := document.New(raw, format)
	if err != nil {
		return Result{}, &DetectionError{Cause: err}
	}
	return d.Detect(doc), nil
}

// Detect classifies an already-addressable document. A document matching
// no case returns Case "" with Confidence 0, a normal result rather than an
// error. Repeated calls with an unevicted cache entry return identical
// results.
func (d *Detector) Detect(doc document.AddressableDocument) Result {
	sig := doc.Signature()
	if d.cache != nil {
		if res, ok := d.cache.Get(sig); ok {
			res.FromCache = true
			return res
		}
	}

	best := Result{Signature: sig}
	var bestCase ParseCase
	for _, c := range d.registry.All() {
		score := d.score(c, doc)
		if score > best.BestConfidence {
			best.Best = c.ID
			best.BestConfidence = score
			bestCase = c
		}
	}

	if best.Best != "" && best.BestConfidence >= d.floorFor(bestCase) {
		best.Case = best.Best
		best.Confidence = best.BestConfidence
		best.Best = ""
		best.BestConfidence = 0
	}

	d.logger.Debug("structure detected",
		zap.String("case", best.Case),
		zap.Float64("confidence", best.Confidence),
		zap.String("signature", sig.String()),
		zap.String("best_candidate", best.Best))

	if d.cache != nil {
		d.cache.Put(sig, best)
	}
	return best
}

// score computes the match score in [0,1]: the weighted required-field
// fraction, scaled to leave room for the bonuses the case can earn, plus
// a bonus for an exact root-tag match and one for an exact session-count
// match. A case earning every bonus with every field present scores
// exactly 1; a sibling case with the wrong session count tops out
// sessionCountBonus lower.
func (d *Detector) score(c ParseCase, doc document.AddressableDocument) float64 {
	var total, present float64
	for _, wp := range c.RequiredPaths {
		w := wp.Weight
		if w <= 0 {
			w = 1
		}
		total += w
		if doc.Exists(wp.Path) {
			present += w
		}
	}
	if total == 0 || present == 0 {
		// A document sharing no required structure with the case earns no
		// bonuses either.
		return 0
	}

	base := 1.0
	if c.RootTag != "" {
		base -= rootTagBonus
	}
	if c.SessionCount > 0 {
		base -= sessionCountBonus
	}
	score := (present / total) * base

	if c.RootTag != "" && doc.Root() == c.RootTag {
		score += rootTagBonus
	}
	if c.SessionCount > 0 {
		path := c.SessionPath
		if path == "" {
			path = "readingSession"
		}
		if doc.Count(path) == c.SessionCount {
			score += sessionCountBonus
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}
