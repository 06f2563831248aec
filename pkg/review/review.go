// Package review decides whether a normalized record can be accepted
// automatically or must be routed to a human reviewer. Routing is a pure
// function of the detection result and the record; it performs no IO and
// never mutates its inputs.
package review

import (
	"fmt"

	"github.com/mapsproj/maps/pkg/canonical"
	"github.com/mapsproj/maps/pkg/detector"
)

// Status is the routing outcome for one document.
type Status string

const (
	StatusAccepted    Status = "accepted"
	StatusNeedsReview Status = "needs_review"
)

// DefaultMappingThreshold is the minimum mapping confidence for
// automatic acceptance.
const DefaultMappingThreshold = 0.8

// Thresholds tunes the routing rule. Zero values fall back to defaults.
type Thresholds struct {
	// MappingConfidence below which a record needs review.
	MappingConfidence float64
}

func (t Thresholds) mapping() float64 {
	if t.MappingConfidence > 0 {
		return t.MappingConfidence
	}
	return DefaultMappingThreshold
}

// Decision is the routing verdict plus enough context for a reviewer to
// see why the document landed on their queue.
type Decision struct {
	Status Status `json:"status"`
	// Reason is empty for accepted records.
	Reason string `json:"reason,omitempty"`
	// Confidence is the mapping confidence the decision was based on.
	Confidence float64 `json:"confidence"`
	// AlternateCase is the best below-floor detection candidate, set
	// only when no case cleared the floor.
	AlternateCase string `json:"alternate_case,omitempty"`
}

// reviewKinds are the issue kinds that block automatic acceptance. A
// coercion or transform failure keeps the raw value in the record, so
// those records carry data a human has to look at.
var reviewKinds = []canonical.IssueKind{
	canonical.IssueFieldMissing,
	canonical.IssueCoercionFailed,
	canonical.IssueTransformFailed,
	canonical.IssueRuleViolation,
}

// Route decides the fate of one normalized record.
func Route(det detector.Result, rec *canonical.Record, thresholds Thresholds) Decision {
	if det.Case == "" {
		return Decision{
			Status:        StatusNeedsReview,
			Reason:        "no parse case cleared the confidence floor",
			Confidence:    rec.Confidence,
			AlternateCase: det.Best,
		}
	}
	if rec.Confidence < thresholds.mapping() {
		return Decision{
			Status: StatusNeedsReview,
			Reason: fmt.Sprintf("mapping confidence %.2f below threshold %.2f",
				rec.Confidence, thresholds.mapping()),
			Confidence: rec.Confidence,
		}
	}
	for _, kind := range reviewKinds {
		if issues := rec.IssuesOfKind(kind); len(issues) > 0 {
			return Decision{
				Status:     StatusNeedsReview,
				Reason:     fmt.Sprintf("%d %s issue(s)", len(issues), kind),
				Confidence: rec.Confidence,
			}
		}
	}
	return Decision{Status: StatusAccepted, Confidence: rec.Confidence}
}
