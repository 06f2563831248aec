package pipeline

import "github.com/mapsproj/maps/pkg/review"

// Stats summarizes a batch run.
type Stats struct {
	Total       int `json:"total"`
	Accepted    int `json:"accepted"`
	NeedsReview int `json:"needs_review"`
	Errors      int `json:"errors"`
	// Empty counts documents that parsed but yielded no mapped fields
	// and no annotations.
	Empty    int `json:"empty"`
	Clusters int `json:"clusters"`
	// PerCase counts committed parse cases; below-floor documents land
	// under "none".
	PerCase map[string]int `json:"per_case"`
	// AvgConfidence averages mapping confidence over non-error documents.
	AvgConfidence float64 `json:"avg_confidence"`
}

// Summarize computes batch statistics over results.
func Summarize(results []Result) Stats {
	stats := Stats{Total: len(results), PerCase: map[string]int{}}

	var confSum float64
	var confN int
	for _, r := range results {
		if r.Err != nil {
			stats.Errors++
			continue
		}
		switch r.Decision.Status {
		case review.StatusAccepted:
			stats.Accepted++
		case review.StatusNeedsReview:
			stats.NeedsReview++
		}

		caseID := r.Detection.Case
		if caseID == "" {
			caseID = "none"
		}
		stats.PerCase[caseID]++
		stats.Clusters += len(r.Clusters)

		if r.Record != nil {
			confSum += r.Record.Confidence
			confN++
			if len(r.Record.Fields) == 0 && len(r.Record.Nodules) == 0 {
				stats.Empty++
			}
		}
	}
	if confN > 0 {
		stats.AvgConfidence = confSum / float64(confN)
	}
	return stats
}
