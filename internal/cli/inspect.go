package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/brickbook/internal/ir"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Revision int64
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <building-id>",
		Short: "Show a building",
		Long: `Show the current state of a building, read-only fields included.

With --revision, the building is rebuilt as it was right after that
revision was committed by undoing every later change.

Examples:
  brickbook show 42
  brickbook show 42 --revision 17 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().Int64Var(&opts.Revision, "revision", 0, "show the building as of this revision")

	return cmd
}

func runShow(opts *ShowOptions, arg string, cmd *cobra.Command) error {
	id, err := parseID("building id", arg)
	if err != nil {
		return err
	}

	s, err := opts.openSession(cmd, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	f := opts.formatter(cmd)

	var b ir.Building
	if cmd.Flags().Changed("revision") {
		b, err = s.service.BuildingAt(ctx, id, opts.Revision)
	} else {
		b, err = s.service.Building(ctx, id)
	}
	if err != nil {
		return f.Rejected(err)
	}
	return f.Success(recordView{building: b})
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <building-id>",
		Short: "Show the revision log of a building",
		Long: `Show every logged change to a building, oldest first.

Each entry lists the acting user, the forward patch it applied and, for
edits, the reverse patch "brickbook revert" would apply. Like entries
carry only the new like count.

Example:
  brickbook history 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

func runHistory(opts *HistoryOptions, arg string, cmd *cobra.Command) error {
	id, err := parseID("building id", arg)
	if err != nil {
		return err
	}

	s, err := opts.openSession(cmd, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	f := opts.formatter(cmd)
	entries, err := s.service.History(commandContext(cmd), id)
	if err != nil {
		return f.Rejected(err)
	}
	return f.Success(historyView{BuildingID: id, Entries: entries})
}
