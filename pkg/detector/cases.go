// Package detector classifies raw annotation documents into known
// structural schema variants ("parse cases") with a confidence score.
// Cases are registered at startup and shared read-only across concurrent
// detections; repeated structures are served from a bounded signature
// cache.
package detector

import (
	"fmt"
	"sort"
)

// DefaultConfidenceFloor is the minimum score a case must reach before the
// detector commits to it. Documents below the floor are returned with an
// empty case plus the best candidate so callers can route them for manual
// classification.
const DefaultConfidenceFloor = 0.75

// WeightedPath is one required field in a case's structural signature.
// Weight scales the field's contribution to the match score.
type WeightedPath struct {
	Path   string
	Weight float64
}

// ParseCase describes one known structural variant. Immutable after
// registration.
type ParseCase struct {
	// ID is the stable case identifier, e.g. "lidc_multi_session_4".
	ID string
	// Label is the human-readable name.
	Label string
	// RootTag, when set, earns a bonus on exact root container match.
	RootTag string
	// RequiredPaths are checked via the adapter's Exists; the match score
	// is the weighted fraction present.
	RequiredPaths []WeightedPath
	// OptionalPaths document fields the case may carry; they do not affect
	// scoring but are reported by structure analysis.
	OptionalPaths []string
	// SessionPath is the repeated reading-session container, counted when
	// SessionCount is set.
	SessionPath string
	// SessionCount, when > 0, earns a bonus on an exact count match and is
	// part of the case's identity (a four-session case never matches a
	// two-session document at full confidence).
	SessionCount int
	// ConfidenceFloor overrides DefaultConfidenceFloor when > 0.
	ConfidenceFloor float64
}

// Registry holds the parse cases known to a detector. Built once at
// startup, read-only afterwards.
type Registry struct {
	cases map[string]ParseCase
	order []string
}

// NewRegistry builds a registry from the given cases. Duplicate IDs are an
// error.
func NewRegistry(cases ...ParseCase) (*Registry, error) {
	r := &Registry{cases: make(map[string]ParseCase, len(cases))}
	for _, c := range cases {
		if c.ID == "" {
			return nil, fmt.Errorf("parse case with empty id")
		}
		if _, dup := r.cases[c.ID]; dup {
			return nil, fmt.Errorf("duplicate parse case %q", c.ID)
		}
		r.cases[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// Get returns the case with the given ID.
func (r *Registry) Get(id string) (ParseCase, bool) {
	c, ok := r.cases[id]
	return c, ok
}

// All returns every registered case in stable (ID-sorted) order.
func (r *Registry) All() []ParseCase {
	out := make([]ParseCase, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.cases[id])
	}
	return out
}

// lidcHeader is the header block shared by all LIDC session variants.
var lidcHeader = []WeightedPath{
	{Path: "ResponseHeader/StudyInstanceUID", Weight: 2},
	{Path: "ResponseHeader/SeriesInstanceUID", Weight: 2},
	{Path: "ResponseHeader/DateService", Weight: 1},
	{Path: "ResponseHeader/TimeService", Weight: 1},
}

func lidcSessionCase(n int) ParseCase {
	required := append([]WeightedPath{}, lidcHeader...)
	required = append(required,
		WeightedPath{Path: "readingSession", Weight: 2},
		WeightedPath{Path: "readingSession/unblindedReadNodule/noduleID", Weight: 2},
		WeightedPath{Path: "readingSession/unblindedReadNodule/characteristics/subtlety", Weight: 1},
		WeightedPath{Path: "readingSession/unblindedReadNodule/roi/imageSOP_UID", Weight: 1},
	)
	label := "LIDC Single Session"
	if n > 1 {
		label = fmt.Sprintf("LIDC Multi Session (%d readers)", n)
	}
	id := "lidc_single_session"
	if n > 1 {
		id = fmt.Sprintf("lidc_multi_session_%d", n)
	}
	return ParseCase{
		ID:            id,
		Label:         label,
		RootTag:       "LidcReadMessage",
		RequiredPaths: required,
		SessionPath:   "readingSession",
		SessionCount:  n,
	}
}

// DefaultRegistry returns the parse cases for the known source schema
// variants: LIDC one-to-four reading sessions plus the three
// ResponseHeader-only report variants.
func DefaultRegistry() *Registry {
	cases := []ParseCase{
		lidcSessionCase(1),
		lidcSessionCase(2),
		lidcSessionCase(3),
		lidcSessionCase(4),
		{
			ID:      "complete_attributes",
			Label:   "Complete Attributes",
			RootTag: "RadiologyReadMessage",
			RequiredPaths: []WeightedPath{
				{Path: "ResponseHeader/StudyInstanceUID", Weight: 2},
				{Path: "ResponseHeader/SeriesInstanceUID", Weight: 2},
				{Path: "ResponseHeader/Modality", Weight: 2},
				{Path: "ResponseHeader/DateService", Weight: 1},
				{Path: "ResponseHeader/TimeService", Weight: 1},
				{Path: "unblindedReadNodule/noduleID", Weight: 2},
				{Path: "unblindedReadNodule/characteristics/subtlety", Weight: 1},
				{Path: "unblindedReadNodule/characteristics/malignancy", Weight: 1},
			},
			OptionalPaths: []string{
				"unblindedReadNodule/characteristics/internalStructure",
				"unblindedReadNodule/characteristics/calcification",
				"unblindedReadNodule/characteristics/sphericity",
				"unblindedReadNodule/characteristics/margin",
				"unblindedReadNodule/characteristics/lobulation",
				"unblindedReadNodule/characteristics/spiculation",
				"unblindedReadNodule/characteristics/texture",
			},
		},
		{
			ID:      "core_attributes_only",
			Label:   "Core Attributes Only",
			RootTag: "RadiologyReadMessage",
			RequiredPaths: []WeightedPath{
				{Path: "ResponseHeader/StudyInstanceUID", Weight: 2},
				{Path: "ResponseHeader/SeriesInstanceUID", Weight: 2},
				{Path: "ResponseHeader/DateService", Weight: 1},
				{Path: "unblindedReadNodule/noduleID", Weight: 2},
				{Path: "unblindedReadNodule/characteristics/subtlety", Weight: 1},
				{Path: "unblindedReadNodule/characteristics/malignancy", Weight: 1},
			},
		},
		{
			ID:      "with_reason_partial",
			Label:   "Partial With Reason",
			RootTag: "RadiologyReadMessage",
			RequiredPaths: []WeightedPath{
				{Path: "ResponseHeader/StudyInstanceUID", Weight: 2},
				{Path: "ResponseHeader/SeriesInstanceUID", Weight: 2},
				{Path: "ResponseHeader/ReasonForExam", Weight: 1},
				{Path: "unblindedReadNodule/noduleID", Weight: 2},
			},
		},
	}
	r, err := NewRegistry(cases...)
	if err != nil {
		// The built-in table is static; a failure here is a programming
		// error.
		panic(err)
	}
	return r
}
