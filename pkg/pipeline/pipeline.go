// Package pipeline wires structure detection, profile mapping, consensus
// and review routing into a single document-processing flow, plus a
// bounded-concurrency batch runner.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mapsproj/maps/internal/metrics"
	"github.com/mapsproj/maps/pkg/canonical"
	"github.com/mapsproj/maps/pkg/consensus"
	"github.com/mapsproj/maps/pkg/detector"
	"github.com/mapsproj/maps/pkg/document"
	"github.com/mapsproj/maps/pkg/mapping"
	"github.com/mapsproj/maps/pkg/profile"
	"github.com/mapsproj/maps/pkg/review"
)

// Options assembles a Pipeline. Detector, Store, and Engine are required;
// the rest have usable zero values.
type Options struct {
	Detector   *detector.Detector
	Store      *profile.Store
	Engine     *mapping.Engine
	Consensus  consensus.Options
	Thresholds review.Thresholds
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Pipeline processes raw annotation documents end to end. Safe for
// concurrent use.
type Pipeline struct {
	detector   *detector.Detector
	store      *profile.Store
	engine     *mapping.Engine
	consensus  consensus.Options
	thresholds review.Thresholds
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// New builds a pipeline from options.
func New(opts Options) (*Pipeline, error) {
	if opts.Detector == nil || opts.Store == nil || opts.Engine == nil {
		return nil, fmt.Errorf("pipeline requires detector, profile store, and mapping engine")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		detector:   opts.Detector,
		store:      opts.Store,
		engine:     opts.Engine,
		consensus:  opts.Consensus,
		thresholds: opts.Thresholds,
		metrics:    opts.Metrics,
		logger:     logger,
	}, nil
}

// Result is the outcome of processing one document. Err is set only by
// the batch runner; Process reports fatal errors through its own return.
type Result struct {
	Input     string              `json:"input,omitempty"`
	Detection detector.Result     `json:"detection"`
	Record    *canonical.Record   `json:"record,omitempty"`
	Clusters  []consensus.Cluster `json:"clusters,omitempty"`
	Decision  review.Decision     `json:"decision"`
	Err       error               `json:"-"`
}

// Process runs one document through detect, map, consolidate, and route.
// A document that cannot be parsed at all is a fatal error; everything
// downstream degrades into issues and review routing instead.
func (p *Pipeline) Process(ctx context.Context, raw []byte, format document.Format) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	doc, err := document.New(raw, format)
	if err != nil {
		p.observe("error", nil, nil, start)
		return nil, &detector.DetectionError{Cause: err}
	}

	det := p.detector.Detect(doc)
	if p.metrics != nil {
		if det.FromCache {
			p.metrics.CacheHitsTotal.Inc()
		} else {
			p.metrics.CacheMissesTotal.Inc()
		}
	}
	res := &Result{Detection: det}

	prof, ok := p.selectProfile(det, format)
	if !ok {
		res.Record = &canonical.Record{Fields: canonical.FieldTree{}}
		res.Decision = review.Decision{
			Status:        review.StatusNeedsReview,
			Reason:        "no mapping profile available",
			AlternateCase: det.Best,
		}
		p.observe(string(res.Decision.Status), res.Record, nil, start)
		return res, nil
	}

	rec, err := p.engine.Apply(prof, doc)
	if err != nil {
		p.observe("error", nil, nil, start)
		return nil, fmt.Errorf("apply profile %q: %w", prof.Name, err)
	}
	rec.Case = det.Case
	res.Record = rec

	res.Clusters = consensus.Consolidate(perReader(rec.Nodules), p.consensus, p.logger)
	res.Decision = review.Route(det, rec, p.thresholds)

	p.observe(string(res.Decision.Status), rec, res.Clusters, start)
	p.logger.Info("document processed",
		zap.String("case", det.Case),
		zap.String("profile", prof.Name),
		zap.Float64("confidence", rec.Confidence),
		zap.Int("clusters", len(res.Clusters)),
		zap.String("status", string(res.Decision.Status)))
	return res, nil
}

// selectProfile picks the profile for the committed case, falling back
// to the best below-floor candidate so reviewers see a best-effort
// record instead of nothing.
func (p *Pipeline) selectProfile(det detector.Result, format document.Format) (*profile.Profile, bool) {
	if det.Case != "" {
		if prof, ok := p.store.ByCase(det.Case, format); ok {
			return prof, true
		}
		return nil, false
	}
	if det.Best != "" {
		if prof, ok := p.store.ByCase(det.Best, format); ok {
			return prof, true
		}
	}
	return nil, false
}

// perReader splits a flat annotation list into per-reader groups in
// reader order.
func perReader(nodules []canonical.NoduleAnnotation) [][]canonical.NoduleAnnotation {
	byReader := map[string][]canonical.NoduleAnnotation{}
	for _, n := range nodules {
		byReader[n.ReaderID] = append(byReader[n.ReaderID], n)
	}
	readers := make([]string, 0, len(byReader))
	for r := range byReader {
		readers = append(readers, r)
	}
	sort.Strings(readers)

	out := make([][]canonical.NoduleAnnotation, 0, len(readers))
	for _, r := range readers {
		out = append(out, byReader[r])
	}
	return out
}

func (p *Pipeline) observe(status string, rec *canonical.Record, clusters []consensus.Cluster, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.DocumentsTotal.WithLabelValues(status).Inc()
	p.metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	if rec != nil {
		p.metrics.MappingConfidence.Observe(rec.Confidence)
		for _, issue := range rec.Issues {
			p.metrics.IssuesTotal.WithLabelValues(string(issue.Kind)).Inc()
		}
		caseLabel := rec.Case
		if caseLabel == "" {
			caseLabel = "none"
		}
		p.metrics.DetectionsTotal.WithLabelValues(caseLabel).Inc()
	}
	p.metrics.ClustersTotal.Add(float64(len(clusters)))
}
