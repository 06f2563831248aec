package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mapsproj/maps/pkg/detector"
	"github.com/mapsproj/maps/pkg/document"
)

// detectCmd classifies documents without mapping them.
var detectCmd = &cobra.Command{
	Use:   "detect <files...>",
	Short: "Detect the structural variant of annotation documents",
	Long: `Detect scores each document against the registered parse cases and
reports the committed case and confidence. Documents below the
confidence floor report an empty case plus the best candidate.

Examples:
  # Detect a single export
  mapsctl detect scan-158.xml

  # JSON output for scripting
  mapsctl detect --json exports/*.xml

  # Include a structure report for unmatched documents
  mapsctl detect --verbose scan-158.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

// verbose adds a structure report to each detection.
var verbose bool

func init() {
	detectCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print a structure report for each document")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache, err := detector.NewCache(cfg.Detector.CacheSize)
	if err != nil {
		return err
	}
	det := detector.New(detector.DefaultRegistry(), cache, logger,
		detector.WithConfidenceFloor(cfg.Detector.ConfidenceFloor))

	for _, path := range args {
		format, err := formatFromPath(path)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := document.New(raw, format)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		res := det.Detect(doc)

		if jsonOutput {
			out := struct {
				Input string `json:"input"`
				detector.Result
				Structure *detector.StructureReport `json:"structure,omitempty"`
			}{Input: path, Result: res}
			if verbose {
				rep := detector.AnalyzeStructure(doc)
				out.Structure = &rep
			}
			enc, err := json.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(enc))
			continue
		}

		caseID := res.Case
		if caseID == "" {
			caseID = fmt.Sprintf("none (best candidate: %s %.2f)", res.Best, res.BestConfidence)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (confidence %.2f)\n", path, caseID, res.Confidence)
		if verbose {
			printStructure(cmd, detector.AnalyzeStructure(doc))
		}
	}
	return nil
}

func printStructure(cmd *cobra.Command, rep detector.StructureReport) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "  format=%s root=%s lidc=%t sessions=%d header=%t unblinded_reads=%t\n",
		rep.Format, rep.RootTag, rep.IsLIDC, rep.ReadingSessions,
		rep.HasResponseHeader, rep.HasUnblindedRead)
	if len(rep.ElementCounts) == 0 {
		return
	}
	names := make([]string, 0, len(rep.ElementCounts))
	for name := range rep.ElementCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "  %d elements:", rep.TotalElements)
	for _, name := range names {
		fmt.Fprintf(w, " %s=%d", name, rep.ElementCounts[name])
	}
	fmt.Fprintln(w)
}
