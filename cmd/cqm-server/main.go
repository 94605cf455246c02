package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cqm/cqm/internal/config"
	"github.com/cqm/cqm/internal/domain/comparison"
	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/measurereport"
	"github.com/cqm/cqm/internal/platform/db"
	"github.com/cqm/cqm/internal/platform/middleware"
	"github.com/cqm/cqm/internal/platform/sandbox"
	"github.com/cqm/cqm/internal/platform/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cqm-server",
		Short: "Clinical quality measure evaluation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(compareCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CQM API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load synthetic demo data into the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			subjects, _ := cmd.Flags().GetInt("subjects")
			seed, _ := cmd.Flags().GetInt64("seed")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a production warehouse")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.SubjectCount = subjects
			seedCfg.Seed = seed

			subs, events := sandbox.Generate(seedCfg)
			if err := sandbox.LoadWarehouse(ctx, pool, subs, events); err != nil {
				return err
			}
			fmt.Printf("Seeded %d subjects and %d events.\n", len(subs), len(events))
			return nil
		},
	}
	cmd.Flags().Int("subjects", 200, "Number of synthetic subjects")
	cmd.Flags().Int64("seed", 1, "Random seed for reproducible cohorts")
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a measure on one path and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			measureID, _ := cmd.Flags().GetString("measure")
			method, _ := cmd.Flags().GetString("method")

			def := measure.FindMeasure(measureID)
			if def == nil {
				return fmt.Errorf("unknown measure %q", measureID)
			}
			period, err := periodFromFlags(cmd)
			if err != nil {
				return err
			}

			svc, _, cleanup, err := buildService(newLogger())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.Evaluate(context.Background(), def, period,
				measurereport.Method(method))
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().String("measure", "", "Measure ID (required)")
	cmd.Flags().String("start", "", "Period start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Period end (YYYY-MM-DD)")
	cmd.Flags().String("method", string(measurereport.MethodMemory), "Evaluation path: memory or warehouse")
	cmd.MarkFlagRequired("measure")
	return cmd
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run a measure through both paths and print the comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			measureID, _ := cmd.Flags().GetString("measure")

			def := measure.FindMeasure(measureID)
			if def == nil {
				return fmt.Errorf("unknown measure %q", measureID)
			}
			period, err := periodFromFlags(cmd)
			if err != nil {
				return err
			}

			_, cmp, cleanup, err := buildService(newLogger())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := cmp.Compare(context.Background(), def, period)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().String("measure", "", "Measure ID (required)")
	cmd.Flags().String("start", "", "Period start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Period end (YYYY-MM-DD)")
	cmd.MarkFlagRequired("measure")
	return cmd
}

func periodFromFlags(cmd *cobra.Command) (measure.Period, error) {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return measure.Period{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return measure.Period{}, fmt.Errorf("invalid --end: %w", err)
	}
	return measure.Period{Start: start, End: end}, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// buildService wires the two evaluation paths over one warehouse: path A is
// an in-memory snapshot materialized from the flattened tables, path B
// queries them directly.
func buildService(logger zerolog.Logger) (*measurereport.Service, *comparison.Comparator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, nil, err
	}

	memStore, err := store.MaterializeFromWarehouse(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	pathA := measurereport.Path{Method: measurereport.MethodMemory, Store: memStore}
	pathB := measurereport.Path{Method: measurereport.MethodWarehouse, Store: store.NewWarehouseStore(pool)}

	svc := measurereport.NewService(measurereport.NewRepoPG(pool), logger, pathA, pathB)
	cmp := comparison.NewComparator(svc, pathA, pathB, logger)
	return svc, cmp, pool.Close, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to warehouse")

	if cfg.SeedOnStart {
		seedCfg := sandbox.DefaultSeedConfig()
		seedCfg.Seed = cfg.DemoSeed
		seedCfg.SubjectCount = cfg.DemoSubjects
		subs, events := sandbox.Generate(seedCfg)
		if err := sandbox.LoadWarehouse(ctx, pool, subs, events); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed warehouse")
		}
		logger.Info().Int("subjects", len(subs)).Int("events", len(events)).Msg("seeded demo cohort")
	}

	memStore, err := store.MaterializeFromWarehouse(ctx, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to materialize memory snapshot")
	}
	logger.Info().Msg("materialized in-memory snapshot")

	pathA := measurereport.Path{Method: measurereport.MethodMemory, Store: memStore}
	pathB := measurereport.Path{Method: measurereport.MethodWarehouse, Store: store.NewWarehouseStore(pool)}

	reportSvc := measurereport.NewService(measurereport.NewRepoPG(pool), logger, pathA, pathB)
	comparator := comparison.NewComparator(reportSvc, pathA, pathB, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api")
	fhirGroup := e.Group("/fhir")

	measure.NewHandler().RegisterRoutes(api)
	measurereport.NewHandler(reportSvc).RegisterRoutes(api, fhirGroup)
	comparison.NewHandler(comparator).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("cqm-server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
