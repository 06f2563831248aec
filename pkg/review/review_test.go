package review

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mapsproj/maps/pkg/canonical"
	"github.com/mapsproj/maps/pkg/detector"
)

func TestRouteAccepted(t *testing.T) {
	det := detector.Result{Case: "lidc_single_session", Confidence: 0.95}
	rec := &canonical.Record{Case: "lidc_single_session", Confidence: 1.0}

	d := Route(det, rec, Thresholds{})
	assert.Equal(t, StatusAccepted, d.Status)
	assert.Empty(t, d.Reason)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Empty(t, d.AlternateCase)
}

func TestRouteNoCaseDetected(t *testing.T) {
	det := detector.Result{Case: "", Confidence: 0, Best: "with_reason_partial", BestConfidence: 0.61}
	rec := &canonical.Record{Confidence: 0.9}

	d := Route(det, rec, Thresholds{})
	assert.Equal(t, StatusNeedsReview, d.Status)
	assert.Equal(t, "with_reason_partial", d.AlternateCase)
	assert.Contains(t, d.Reason, "confidence floor")
}

func TestRouteLowMappingConfidence(t *testing.T) {
	det := detector.Result{Case: "lidc_single_session", Confidence: 0.9}
	rec := &canonical.Record{Case: "lidc_single_session", Confidence: 0.6}

	d := Route(det, rec, Thresholds{})
	assert.Equal(t, StatusNeedsReview, d.Status)
	assert.Contains(t, d.Reason, "below threshold")
	assert.Equal(t, 0.6, d.Confidence)

	// A looser threshold lets the same record through.
	d = Route(det, rec, Thresholds{MappingConfidence: 0.5})
	assert.Equal(t, StatusAccepted, d.Status)
}

func TestRouteBlockingIssues(t *testing.T) {
	det := detector.Result{Case: "lidc_single_session", Confidence: 0.9}

	tests := []struct {
		name     string
		kind     canonical.IssueKind
		blocking bool
	}{
		{"field missing", canonical.IssueFieldMissing, true},
		{"coercion failed", canonical.IssueCoercionFailed, true},
		{"transform failed", canonical.IssueTransformFailed, true},
		{"rule violation", canonical.IssueRuleViolation, true},
		{"extra field", canonical.IssueExtraField, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &canonical.Record{
				Case:       "lidc_single_session",
				Confidence: 0.95,
				Issues:     []canonical.Issue{{Kind: tt.kind, TargetPath: "x"}},
			}
			d := Route(det, rec, Thresholds{})
			if tt.blocking {
				assert.Equal(t, StatusNeedsReview, d.Status)
				assert.Contains(t, d.Reason, string(tt.kind))
			} else {
				assert.Equal(t, StatusAccepted, d.Status)
			}
		})
	}
}
