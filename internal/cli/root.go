package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/arnold/achievements-api/internal/bootstrap"
	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/config"
	applogger "github.com/arnold/achievements-api/internal/logger"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Backend is what commands operate on.
type Backend struct {
	Store store.Store
	DB    *gorm.DB
	Log   *zap.Logger
	Close func()
}

// Opener connects a Backend.
type Opener func(ctx context.Context, opts *RootOptions) (*Backend, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command backed by the configured store.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(openConfigured)
}

// NewRootCommandWith creates the root command backed by open.
func NewRootCommandWith(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "achievementsctl",
		Short: "Manage event achievements",
		Long:  "Inspect and edit the per-day achievement lists directly in the configured store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewReorderCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))

	return cmd
}

func openConfigured(ctx context.Context, opts *RootOptions) (*Backend, error) {
	_ = godotenv.Load()
	cfg := config.Load()

	log := zap.NewNop()
	if opts.Verbose {
		log = applogger.New(cfg.AppEnv)
	}

	app, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &Backend{Store: app.Store, DB: app.DB, Log: log, Close: app.Close}, nil
}

// withBackend opens the backend for the length of fn.
func withBackend(cmd *cobra.Command, opts *RootOptions, fn func(*Backend) error) error {
	b, err := opts.open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

// withDay opens the backend and a synchronizer on day for the length of fn.
func withDay(cmd *cobra.Command, opts *RootOptions, name string, fn func(*collection.Synchronizer) error) error {
	day, ok := models.ParseDay(name)
	if !ok {
		return fmt.Errorf("%w: %q", collection.ErrUnknownDay, name)
	}
	return withBackend(cmd, opts, func(b *Backend) error {
		s := collection.New(b.Store, b.Log, nil)
		if err := s.Select(cmd.Context(), day); err != nil {
			return err
		}
		defer s.Close()
		return fn(s)
	})
}

// parseDays defaults to every day.
func parseDays(args []string) ([]models.Day, error) {
	if len(args) == 0 {
		return models.Days, nil
	}
	days := make([]models.Day, 0, len(args))
	for _, arg := range args {
		day, ok := models.ParseDay(arg)
		if !ok {
			return nil, fmt.Errorf("%w: %q", collection.ErrUnknownDay, arg)
		}
		days = append(days, day)
	}
	return days, nil
}
