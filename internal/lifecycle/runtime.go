// Package lifecycle implements the operator surface from spec.md §4.9:
// create/restart/remove one worker container per Indexer row, and tail its
// logs. The container runtime itself is a narrow port so the lifecycle
// manager never depends on a specific engine.
package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
)

// ContainerSpec is everything the runtime needs to launch one worker.
type ContainerSpec struct {
	Name    string
	Image   string
	Network string
	Env     map[string]string
}

// ContainerRuntime is the port the lifecycle Manager drives; spec.md §4.9
// names exactly these four verbs.
type ContainerRuntime interface {
	Create(ctx context.Context, spec ContainerSpec) error
	Restart(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Logs(ctx context.Context, name string, tailLines int) (string, error)
}

// DockerRuntime shells out to the docker CLI. None of the example repos
// vendor a Docker SDK client (moby/moby, docker/docker/client); os/exec
// against the CLI is the only grounded option and mirrors how
// orbas1-Synnergy's own node-management commands shell out to external
// binaries rather than link a heavyweight client library.
type DockerRuntime struct {
	binary string
}

// NewDockerRuntime builds a DockerRuntime using the docker binary on PATH.
func NewDockerRuntime() *DockerRuntime {
	return &DockerRuntime{binary: "docker"}
}

func (r *DockerRuntime) Create(ctx context.Context, spec ContainerSpec) error {
	args := []string{"run", "-d", "--name", spec.Name, "--network", spec.Network}
	for _, key := range sortedKeys(spec.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", key, spec.Env[key]))
	}
	args = append(args, spec.Image)
	return r.run(ctx, args...)
}

func (r *DockerRuntime) Restart(ctx context.Context, name string) error {
	return r.run(ctx, "restart", name)
}

func (r *DockerRuntime) Remove(ctx context.Context, name string) error {
	if err := r.run(ctx, "stop", name); err != nil {
		return err
	}
	return r.run(ctx, "rm", name)
}

func (r *DockerRuntime) Logs(ctx context.Context, name string, tailLines int) (string, error) {
	out, err := r.output(ctx, "logs", "--tail", fmt.Sprintf("%d", tailLines), name)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (r *DockerRuntime) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("lifecycle.DockerRuntime: docker %v: %w: %s", args, err, stderr.String())
	}
	return nil
}

func (r *DockerRuntime) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("lifecycle.DockerRuntime: docker %v: %w: %s", args, err, stderr.String())
	}
	return stdout.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
