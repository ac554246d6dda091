package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/clinic_scheduler/internal/app"
	"github.com/Freeeeeet/clinic_scheduler/internal/config"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinic",
		Short:         "Clinic recurring availability and slot scheduling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), generateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env загружает конфиг, логгер и пул, cleanup закрывает их
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func setup(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	pool, err := app.NewPool(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = logger.Sync()
	}
	return &env{cfg: cfg, logger: logger, pool: pool}, cleanup, nil
}

func serveCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the admin bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			e.logger.Info("Starting clinic scheduler",
				zap.String("environment", e.cfg.Environment),
				zap.String("timezone", e.cfg.Timezone.String()),
				zap.Bool("telegram", e.cfg.TelegramEnabled()))

			if !skipMigrate {
				if err := migrateUp(ctx, e); err != nil {
					return err
				}
			}

			a, err := app.New(e.cfg, e.pool, e.logger)
			if err != nil {
				return err
			}
			return a.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply pending migrations on start")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return migrateUp(cmd.Context(), e)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			mg, err := app.NewMigrator(e.pool, e.logger)
			if err != nil {
				return err
			}
			defer mg.Close()
			return mg.Status(cmd.Context())
		},
	})

	return cmd
}

func migrateUp(ctx context.Context, e *env) error {
	mg, err := app.NewMigrator(e.pool, e.logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up(ctx)
}

func generateCmd() *cobra.Command {
	var (
		templateID string
		from, to   string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Materialize slots for a template or for all active templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (templateID != "") {
				return fmt.Errorf("exactly one of --template or --all is required")
			}

			ctx := cmd.Context()
			e, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			fromDay, err := model.ParseDate(from, e.cfg.Timezone)
			if err != nil {
				return err
			}
			toDay := fromDay
			if to != "" {
				if toDay, err = model.ParseDate(to, e.cfg.Timezone); err != nil {
					return err
				}
			}

			a, err := app.New(e.cfg, e.pool, e.logger)
			if err != nil {
				return err
			}

			var created int
			if all {
				created, err = a.Generator.GenerateAllActive(ctx, fromDay, toDay)
			} else {
				id, parseErr := uuid.Parse(templateID)
				if parseErr != nil {
					return fmt.Errorf("invalid template id %q: %w", templateID, parseErr)
				}
				created, err = a.Generator.Generate(ctx, id, fromDay, toDay)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "slots created: %d\n", created)
			return err
		},
	}

	cmd.Flags().StringVar(&templateID, "template", "", "Template ID")
	cmd.Flags().BoolVar(&all, "all", false, "Generate for every active template")
	cmd.Flags().StringVar(&from, "from", "", "First date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last date, YYYY-MM-DD (defaults to --from)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
