package lifecycle

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/config"
	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
	"github.com/csic-platform/evm-indexer/internal/store"
)

// inheritedEnvVars are forwarded from the operator process's own
// environment into every worker container, per spec.md §4.9 ("inheriting
// database credentials from the host environment").
var inheritedEnvVars = []string{
	"INDEXER_DATABASE_HOST", "INDEXER_DATABASE_PORT", "INDEXER_DATABASE_USERNAME",
	"INDEXER_DATABASE_PASSWORD", "INDEXER_DATABASE_NAME", "INDEXER_DATABASE_SSL_MODE",
	"INDEXER_REDIS_HOST", "INDEXER_REDIS_PORT", "INDEXER_KAFKA_BROKERS",
}

// Manager implements the three operator verbs over one Indexer row at a
// time: create, restart, remove (spec.md §4.9).
type Manager struct {
	runtime     ContainerRuntime
	configStore store.ConfigStore
	lifecycle   config.LifecycleConfig
	logger      *zap.Logger
}

// NewManager builds a Manager.
func NewManager(runtime ContainerRuntime, configStore store.ConfigStore, lifecycle config.LifecycleConfig, logger *zap.Logger) *Manager {
	return &Manager{runtime: runtime, configStore: configStore, lifecycle: lifecycle, logger: logger}
}

// Create launches a new container for indexerName and flips its status to
// on. The container name and INDEXER_NAME env var both equal indexerName,
// so the worker process can look up its own row at startup.
func (m *Manager) Create(ctx context.Context, indexerName string) error {
	indexer, err := m.configStore.Indexer(ctx, indexerName)
	if err != nil {
		return errs.Configurationf("lifecycle.Manager.Create", "load indexer %q: %v", indexerName, err)
	}
	if err := indexer.ValidateName(); err != nil {
		return err
	}

	spec := ContainerSpec{
		Name:    indexer.Name,
		Image:   m.lifecycle.Image,
		Network: m.lifecycle.NetworkName,
		Env:     m.workerEnv(indexer.Name),
	}
	if err := m.runtime.Create(ctx, spec); err != nil {
		return fmt.Errorf("lifecycle.Manager.Create: %w", err)
	}
	return m.configStore.SetStatus(ctx, indexer.ID, domain.IndexerOn)
}

// Restart restarts an existing container and flips status back to on.
func (m *Manager) Restart(ctx context.Context, indexerName string) error {
	indexer, err := m.configStore.Indexer(ctx, indexerName)
	if err != nil {
		return errs.Configurationf("lifecycle.Manager.Restart", "load indexer %q: %v", indexerName, err)
	}
	if err := m.runtime.Restart(ctx, indexer.Name); err != nil {
		return fmt.Errorf("lifecycle.Manager.Restart: %w", err)
	}
	return m.configStore.SetStatus(ctx, indexer.ID, domain.IndexerOn)
}

// Remove stops and removes the container and flips status to off.
func (m *Manager) Remove(ctx context.Context, indexerName string) error {
	indexer, err := m.configStore.Indexer(ctx, indexerName)
	if err != nil {
		return errs.Configurationf("lifecycle.Manager.Remove", "load indexer %q: %v", indexerName, err)
	}
	if err := m.runtime.Remove(ctx, indexer.Name); err != nil {
		return fmt.Errorf("lifecycle.Manager.Remove: %w", err)
	}
	return m.configStore.SetStatus(ctx, indexer.ID, domain.IndexerOff)
}

// Logs returns the last N lines of the container's log, per the
// lifecycle config's log_tail_lines default (spec.md §4.9: "last 100
// lines").
func (m *Manager) Logs(ctx context.Context, indexerName string) (string, error) {
	tail := m.lifecycle.LogTailLines
	if tail <= 0 {
		tail = 100
	}
	logs, err := m.runtime.Logs(ctx, indexerName, tail)
	if err != nil {
		return "", fmt.Errorf("lifecycle.Manager.Logs: %w", err)
	}
	return logs, nil
}

func (m *Manager) workerEnv(indexerName string) map[string]string {
	env := map[string]string{"INDEXER_NAME": indexerName}
	for _, key := range inheritedEnvVars {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env
}
