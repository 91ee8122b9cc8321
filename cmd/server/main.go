package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "tempshare",
		Short: "Temporary public file board.",
		Long: `tempshare serves a public board where uploads stay visible for a short window
before they are removed. Administrators can delete files or keep them permanently.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfigPath(cmd, opts.configFile)
			if err != nil {
				return err
			}
			opts.configFile = path
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "config.yaml",
		"config file path; ignored when the default file does not exist")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env",
		"dotenv file loaded before reading the environment")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newSweepCommand(opts))
	rootCmd.AddCommand(newMigrateCommand(opts))
	return rootCmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the expiry sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired files once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.sweeper.RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			a.log.Info("sweep finished",
				zap.Int("scanned", res.Scanned),
				zap.Int("deleted", res.Deleted),
				zap.Int("skipped", res.Skipped),
				zap.Int("failed", res.Failed),
				zap.Bool("lock_busy", res.LockBusy))
			if res.Failed > 0 {
				return fmt.Errorf("%d expired file(s) could not be removed", res.Failed)
			}
			return nil
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and seed the admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			a.log.Info("database migrated")
			return nil
		},
	}
}

// resolveConfigPath 默认配置文件不存在时只用默认值与环境变量
func resolveConfigPath(cmd *cobra.Command, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", path, err)
	}
	return path, nil
}
