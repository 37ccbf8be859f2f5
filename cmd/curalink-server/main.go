package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/config"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/domain/notification"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/cache"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/db"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/metrics"
	"github.com/Abhinaba-code/curalinkproject-sub000/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "curalink-server",
		Short:        "CuraLink forum and notification API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(notificationsCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource returns the embedded migrations, or dir on disk when set.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return nil, nil, fmt.Errorf("migrations only apply to the %q backend, STORE_BACKEND is %q", config.BackendPostgres, cfg.StoreBackend)
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationSource(dir)), pool.Close, nil
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

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to a migrations directory (defaults to the embedded set)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to a migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Maintain stored notifications",
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete read notifications older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = cfg.NotificationRetention
			}

			logger := newLogger(cfg)
			ctx := context.Background()
			st, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()

			router := notification.NewRouter(st.notifications, st.tx, logger, notification.Options{})
			n, err := router.PurgeRead(ctx, time.Now().UTC().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d read notification(s) older than %s.\n", n, olderThan)
			return nil
		},
	}
	purgeCmd.Flags().Duration("older-than", 0, "Age threshold (defaults to NOTIFICATION_RETENTION)")
	cmd.AddCommand(purgeCmd)

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("ENV=development: identity is taken from X-User-* headers, never run this in production")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open storage")
	}
	defer st.close()
	logger.Info().Str("backend", st.backend).Msg("storage ready")

	var unread cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, unread counts will not be cached")
		} else {
			defer rc.Close()
			unread = rc
			logger.Info().Msg("connected to redis")
		}
	}

	m := metrics.New()
	app := newServer(cfg, logger, st, unread, m)

	sweeper, err := notification.NewSweeper(app.router, cfg.NotificationRetention, cfg.NotificationRetentionCron, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure retention sweeper")
	}
	sweepDone := sweeper.Start(ctx)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = app.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = app.echo.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	select {
	case <-sweepDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("retention sweep still running at shutdown")
	}
	logger.Info().Msg("server stopped")
	return nil
}
