package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bennydictor/visualmath/internal/app"
	"github.com/bennydictor/visualmath/internal/auth"
	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/pkg/types"
)

// version is set via -ldflags at build time.
var version = "(devel)"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "visualmath",
		Short:        "Live lecture presentation server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}
	root.PersistentFlags().String("config", os.Getenv(config.EnvPrefix+"CONFIG_FILE"), "Path to a JSON config file (file > environment > defaults)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newInitDBCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig resolves the configuration and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfigWithPrecedence(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			application, err := app.NewApplication(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx)
		},
	}
}

func newInitDBCmd() *cobra.Command {
	var (
		email    string
		password string
		reset    bool
	)
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema and an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			return initDB(cmd.Context(), cfg, log, email, password, reset)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password")
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete the existing database first")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func initDB(ctx context.Context, cfg *config.Config, log *logger.Logger, email, password string, reset bool) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errors.New("email and password must not be empty")
	}

	if reset {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(cfg.Database.Path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", cfg.Database.Path+suffix, err)
			}
		}
		log.Info("removed existing database", "path", cfg.Database.Path)
	}

	db, err := app.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.GetUserByEmail(ctx, email); err == nil {
		return fmt.Errorf("user %s already exists", email)
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &types.User{Email: email, Password: hash, Admin: true, FirstName: "Admin"}
	if err := db.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	log.Info("created admin", "user_id", admin.ID, "email", email)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "visualmath", version)
		},
	}
}
