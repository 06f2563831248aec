package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mapsproj/maps/pkg/mapping"
	"github.com/mapsproj/maps/pkg/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect and validate mapping profiles",
}

// profilesValidateCmd loads a profile directory and reports problems.
var profilesValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate every profile in a directory",
	Long: `Validate parses, flattens, and validates every profile in the
directory (default: the configured profile directory). Inheritance
cycles, unknown transforms, and rule contradictions are load errors.

Examples:
  mapsctl profiles validate ./profiles`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfilesValidate,
}

func init() {
	profilesCmd.AddCommand(profilesValidateCmd)
}

func runProfilesValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	dir := cfg.Profiles.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	engine := mapping.NewEngine(mapping.NewRegistry(), logger)
	store, err := profile.NewStore(dir, engine.Transforms(), logger)
	if err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}

	for _, name := range store.Names() {
		p, _ := store.Get(name)
		target := "any case"
		if p.Case != "" {
			target = "case " + p.Case
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %s, %d mappings)\n",
			name, p.FileType, target, len(p.Mappings))
	}
	return nil
}
