package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/seed"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [day...]",
		Short: "Show achievements in display order",
		Long: `Show the achievements of the given days (all days by default) in display order.

--format yaml prints a file that the seed command accepts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := parseDays(args)
			if err != nil {
				return err
			}
			return withBackend(cmd, rootOpts, func(b *Backend) error {
				lists := make(map[models.Day][]models.Achievement, len(days))
				for _, day := range days {
					snap, err := b.Store.Snapshot(cmd.Context(), day)
					if err != nil {
						return err
					}
					lists[day] = collection.FromSnapshot(snap)
				}
				return printLists(cmd.OutOrStdout(), rootOpts.Format, days, lists)
			})
		},
	}
}

func printLists(w io.Writer, format string, days []models.Day, lists map[models.Day][]models.Achievement) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lists)

	case "yaml":
		return seed.Write(w, seed.FromLists(days, lists))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, day := range days {
		fmt.Fprintf(tw, "%s (%d)\n", day, len(lists[day]))
		for i, item := range lists[day] {
			done := " "
			if item.Completed {
				done = "x"
			}
			fmt.Fprintf(tw, "  %d\t[%s]\t%s\t%s\n", i, done, item.Title, item.ID)
		}
	}
	return tw.Flush()
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Append achievements from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			f, err := seed.Load(r)
			if err != nil {
				return err
			}
			return withBackend(cmd, rootOpts, func(b *Backend) error {
				n, err := seed.Apply(cmd.Context(), b.Store, f, replace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d achievement(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "clear each listed day first")
	return cmd
}
