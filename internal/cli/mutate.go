package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/brickbook/internal/ir"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Database string
	User     string
	Revision int64
	Fields   string
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <building-id>",
		Short: "Save an edit to a building",
		Long: `Save an edit to a building under the optimistic update protocol.

--revision is the revision the edit was made against. If the building has
moved on since, the save is rejected with CONFLICT and nothing is written;
reload with "brickbook show" and try again. Fields that already hold the
proposed value are left alone, and a save that changes nothing writes no
log entry.

Exit codes:
  0 - Saved (or nothing to change)
  1 - Rejected (conflict, validation)
  2 - Command error

Example:
  brickbook save 42 --revision 7 --user 9b2c... --fields '{"date_year": 1848}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringVar(&opts.User, "user", "", "acting user UUID (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().Int64Var(&opts.Revision, "revision", 0, "expected revision (required)")
	_ = cmd.MarkFlagRequired("revision")
	cmd.Flags().StringVar(&opts.Fields, "fields", "", "proposed fields as a JSON object (required)")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func runSave(opts *SaveOptions, arg string, cmd *cobra.Command) error {
	id, err := parseID("building id", arg)
	if err != nil {
		return err
	}
	user, err := parseUser(opts.User)
	if err != nil {
		return err
	}
	fields, err := ir.ParseObject([]byte(opts.Fields))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --fields JSON", err)
	}
	fields[ir.FieldRevisionID] = ir.Int(opts.Revision)

	s, err := opts.openSession(cmd, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	f := opts.formatter(cmd)
	b, err := s.service.SaveBuilding(commandContext(cmd), id, fields, user)
	if err != nil {
		return f.Rejected(err)
	}
	if b.RevisionID == opts.Revision {
		f.VerboseLog("no changes; revision stays at %d", b.RevisionID)
	}
	return f.Success(recordView{building: b})
}

// LikeOptions holds flags for the like command.
type LikeOptions struct {
	*RootOptions
	Database string
	User     string
}

// NewLikeCommand creates the like command.
func NewLikeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LikeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "like <building-id>",
		Short: "Record that a user likes a building",
		Long: `Record that a user likes a building.

Each user can like a building once; a second like is rejected with
ALREADY_ACTED. Likes from different users never conflict with each other
or with edits, and every like advances the building's revision.

Example:
  brickbook like 42 --user 9b2c...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLike(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringVar(&opts.User, "user", "", "acting user UUID (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runLike(opts *LikeOptions, arg string, cmd *cobra.Command) error {
	id, err := parseID("building id", arg)
	if err != nil {
		return err
	}
	user, err := parseUser(opts.User)
	if err != nil {
		return err
	}

	s, err := opts.openSession(cmd, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	f := opts.formatter(cmd)
	b, err := s.service.LikeBuilding(commandContext(cmd), id, user)
	if err != nil {
		return f.Rejected(err)
	}
	return f.Success(recordView{building: b})
}

// RevertOptions holds flags for the revert command.
type RevertOptions struct {
	*RootOptions
	Database string
	User     string
	Revision int64
}

// NewRevertCommand creates the revert command.
func NewRevertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RevertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "revert <building-id> <log-id>",
		Short: "Undo one logged change",
		Long: `Undo one logged change by saving its reverse patch as a new edit.

The revert is itself an edit: it needs the building's current revision,
conflicts like any other save, and is recorded in the history. Like
entries carry no reverse patch and cannot be reverted.

Example:
  brickbook revert 42 17 --revision 19 --user 9b2c...`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevert(opts, args[0], args[1], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringVar(&opts.User, "user", "", "acting user UUID (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().Int64Var(&opts.Revision, "revision", 0, "expected revision (required)")
	_ = cmd.MarkFlagRequired("revision")

	return cmd
}

func runRevert(opts *RevertOptions, idArg, logArg string, cmd *cobra.Command) error {
	id, err := parseID("building id", idArg)
	if err != nil {
		return err
	}
	logID, err := parseID("log id", logArg)
	if err != nil {
		return err
	}
	user, err := parseUser(opts.User)
	if err != nil {
		return err
	}

	s, err := opts.openSession(cmd, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	f := opts.formatter(cmd)
	b, err := s.service.RevertChange(commandContext(cmd), id, logID, opts.Revision, user)
	if err != nil {
		return f.Rejected(err)
	}
	return f.Success(recordView{building: b})
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
