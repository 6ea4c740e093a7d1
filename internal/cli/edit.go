package cli

import (
	"fmt"
	"strconv"

	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/spf13/cobra"
)

// NewReorderCommand creates the reorder command.
func NewReorderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <day> <from> <to>",
		Short: "Move an achievement to another position",
		Long: `Move the achievement at position <from> to position <to> (both zero-based,
as shown by list) and renumber the whole day.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("from: %w", err)
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("to: %w", err)
			}
			return withDay(cmd, rootOpts, args[0], func(s *collection.Synchronizer) error {
				if err := s.Reorder(cmd.Context(), from, to); err != nil {
					return err
				}
				return printLists(cmd.OutOrStdout(), rootOpts.Format, []models.Day{s.Day()},
					map[models.Day][]models.Achievement{s.Day(): s.Items()})
			})
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <day> <id>",
		Short: "Clear a completion and its proof",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDay(cmd, rootOpts, args[0], func(s *collection.Synchronizer) error {
				if err := s.Reset(cmd.Context(), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[1])
				return nil
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <day> <id>",
		Short: "Remove an achievement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDay(cmd, rootOpts, args[0], func(s *collection.Synchronizer) error {
				if err := s.Delete(cmd.Context(), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[1])
				return nil
			})
		},
	}
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <day> <id> <proof-url>",
		Short: "Mark an achievement completed with an already uploaded proof",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDay(cmd, rootOpts, args[0], func(s *collection.Synchronizer) error {
				if _, ok := s.Find(args[1]); !ok {
					return fmt.Errorf("%w: %s", collection.ErrNotFound, args[1])
				}
				s.Toggle(args[1])
				if err := s.CompleteSelected(cmd.Context(), args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", args[1])
				return nil
			})
		},
	}
}
