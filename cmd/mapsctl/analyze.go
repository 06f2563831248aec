package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mapsproj/maps/internal/metrics"
	"github.com/mapsproj/maps/pkg/consensus"
	"github.com/mapsproj/maps/pkg/detector"
	"github.com/mapsproj/maps/pkg/mapping"
	"github.com/mapsproj/maps/pkg/pipeline"
	"github.com/mapsproj/maps/pkg/profile"
	"github.com/mapsproj/maps/pkg/review"
)

// workers bounds batch concurrency for analyze.
var workers int

// analyzeCmd runs the full pipeline over a batch of documents.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Run detection, mapping, consensus, and review over documents",
	Long: `Analyze runs each document through the full pipeline: structure
detection, profile mapping, multi-reader consensus, and review routing.
It prints one result per document plus batch statistics. A document
that fails does not abort the batch.

Examples:
  # Analyze a directory of exports with 8 workers
  mapsctl analyze --workers 8 exports/*.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&workers, "workers", 0, "concurrent documents (default from config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine := mapping.NewEngine(mapping.NewRegistry(), logger)
	store, err := profile.NewStore(cfg.Profiles.Dir, engine.Transforms(), logger)
	if err != nil {
		return err
	}
	if cfg.Profiles.Watch {
		if err := store.Watch(cmd.Context()); err != nil {
			return err
		}
	}
	cache, err := detector.NewCache(cfg.Detector.CacheSize)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		Detector: detector.New(detector.DefaultRegistry(), cache, logger,
			detector.WithConfidenceFloor(cfg.Detector.ConfidenceFloor)),
		Store:    store,
		Engine:   engine,
		Consensus: consensus.Options{
			DistanceThreshold:   cfg.Consensus.DistanceThreshold,
			IgnoreExplicitLinks: cfg.Consensus.IgnoreExplicitLinks,
		},
		Thresholds: review.Thresholds{MappingConfidence: cfg.Review.MappingConfidence},
		Metrics:    metrics.New(prometheus.NewRegistry()),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	inputs := make([]pipeline.Input, 0, len(args))
	for _, path := range args {
		format, err := formatFromPath(path)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		inputs = append(inputs, pipeline.Input{Name: path, Raw: raw, Format: format})
	}

	n := workers
	if n == 0 {
		n = cfg.Pipeline.Workers
	}
	results := p.RunBatch(cmd.Context(), inputs, n)
	stats := pipeline.Summarize(results)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for i := range results {
			if err := enc.Encode(resultJSON(&results[i])); err != nil {
				return err
			}
		}
		return enc.Encode(stats)
	}

	for i := range results {
		printResult(cmd, &results[i])
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"\n%d documents: %d accepted, %d need review, %d errors, %d empty, %d clusters, avg confidence %.2f\n",
		stats.Total, stats.Accepted, stats.NeedsReview, stats.Errors, stats.Empty,
		stats.Clusters, stats.AvgConfidence)
	return nil
}

// resultJSON makes the batch error printable.
func resultJSON(r *pipeline.Result) any {
	out := struct {
		*pipeline.Result
		Error string `json:"error,omitempty"`
	}{Result: r}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func printResult(cmd *cobra.Command, r *pipeline.Result) {
	if r.Err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %v\n", r.Input, r.Err)
		return
	}
	caseID := r.Detection.Case
	if caseID == "" {
		caseID = "none"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: case=%s status=%s confidence=%.2f clusters=%d issues=%d\n",
		r.Input, caseID, r.Decision.Status, r.Decision.Confidence,
		len(r.Clusters), len(r.Record.Issues))
}
