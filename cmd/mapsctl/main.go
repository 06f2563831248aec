// Package main implements the mapsctl CLI for running annotation
// documents through the normalization pipeline.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapsproj/maps/internal/config"
	"github.com/mapsproj/maps/internal/logging"
	"github.com/mapsproj/maps/pkg/document"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string
	// jsonOutput switches command output to JSON.
	jsonOutput bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mapsctl",
	Short: "Normalize heterogeneous radiology annotation exports",
	Long: `mapsctl detects the structural variant of radiology annotation
documents, maps them onto a canonical record via declarative profiles,
consolidates multi-reader annotations, and routes low-confidence results
for review.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON output")
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(profilesCmd)
}

// loadConfig assembles configuration plus the process logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// formatFromPath infers the document format from the file extension.
func formatFromPath(path string) (document.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return document.FormatXML, nil
	case ".json":
		return document.FormatJSON, nil
	case ".csv":
		return document.FormatCSV, nil
	default:
		return "", fmt.Errorf("cannot infer document format from %q (expected .xml, .json, or .csv)", path)
	}
}
