package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/brickbook/internal/harness"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
}

// seedSummary reports what a seed inserted.
type seedSummary struct {
	Database   string `json:"database"`
	Geometries int    `json:"geometries"`
	Buildings  int    `json:"buildings"`
}

func (s seedSummary) String() string {
	return fmt.Sprintf("Seeded %d buildings (%d geometries) into %s", s.Buildings, s.Geometries, s.Database)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load buildings from a fixture file",
		Long: `Load geometries and buildings from a YAML fixture file.

Seeded buildings start at revision 0 with no history and no likes. The
whole file is inserted in one transaction: if any id already exists,
nothing is inserted. Buildings without a listed geometry get a small
generated footprint.

Example:
  brickbook seed --db ./brickbook.db ./fixtures/terrace.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	set, err := harness.LoadFixtures(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}
	geometries, buildings, err := set.Build()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fixtures", err)
	}

	s, err := opts.openSession(cmd, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.store.Seed(commandContext(cmd), geometries, buildings); err != nil {
		return WrapExitError(ExitFailure, "failed to seed", err)
	}
	s.logger.Info("fixtures seeded", "path", path, "buildings", len(buildings))

	return opts.formatter(cmd).Success(seedSummary{
		Database:   s.config.Database,
		Geometries: len(geometries),
		Buildings:  len(buildings),
	})
}
