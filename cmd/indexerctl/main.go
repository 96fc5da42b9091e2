// Command indexerctl is the cobra-based CLI front-end for the lifecycle
// manager's create/restart/remove/logs verbs (spec.md §4.9).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/config"
	"github.com/csic-platform/evm-indexer/internal/lifecycle"
	"github.com/csic-platform/evm-indexer/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexerctl",
		Short: "Operate evm-indexer worker containers",
	}

	root.AddCommand(
		newCreateCmd(),
		newRestartCmd(),
		newRemoveCmd(),
		newLogsCmd(),
	)
	return root
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [indexer-name]",
		Short: "Create and start a worker container for an indexer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) error {
				return m.Create(cmd.Context(), args[0])
			})
		},
	}
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart [indexer-name]",
		Short: "Restart a worker container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) error {
				return m.Restart(cmd.Context(), args[0])
			})
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [indexer-name]",
		Short: "Stop and remove a worker container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) error {
				return m.Remove(cmd.Context(), args[0])
			})
		},
	}
}

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs [indexer-name]",
		Short: "Print the last log_tail_lines of a worker container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) error {
				logs, err := m.Logs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(logs)
				return nil
			})
		},
	}
}

func withManager(ctx context.Context, fn func(*lifecycle.Manager) error) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("indexerctl: init logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("indexerctl: load config: %w", err)
	}

	postgres, err := store.Open(ctx, store.PoolConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("indexerctl: connect database: %w", err)
	}
	defer postgres.Close()

	manager := lifecycle.NewManager(lifecycle.NewDockerRuntime(), postgres, cfg.Lifecycle, logger)
	return fn(manager)
}
