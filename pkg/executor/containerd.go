package executor

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
)

const (
	// namespace is the containerd namespace every workload container
	// runs under.
	namespace = "hpos-core"

	// defaultSocketPath is the default containerd socket.
	defaultSocketPath = "/run/containerd/containerd.sock"

	stopTimeout = 10 * time.Second
)

// ContainerRuntime wraps a containerd client, scoped to one namespace,
// adapted from cuemby-warren/pkg/runtime/containerd.go's ContainerdRuntime
// but narrowed to the container-path manifest's fields (image ref,
// command, env — no resource limits, since §3's SystemSpecs is a host
// capacity hint, not a per-container cgroup spec).
type ContainerRuntime struct {
	client *containerd.Client
}

// NewContainerRuntime connects to containerd at socketPath (falling
// back to defaultSocketPath when empty).
func NewContainerRuntime(socketPath string) (*ContainerRuntime, error) {
	if socketPath == "" {
		socketPath = defaultSocketPath
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("executor: connecting to containerd: %w", err)
	}
	return &ContainerRuntime{client: client}, nil
}

// Close releases the containerd client connection.
func (r *ContainerRuntime) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Ping reports whether the containerd daemon is reachable and serving,
// for use as an admin readiness check.
func (r *ContainerRuntime) Ping(ctx context.Context) error {
	serving, err := r.client.IsServing(ctx)
	if err != nil {
		return fmt.Errorf("executor: checking containerd health: %w", err)
	}
	if !serving {
		return fmt.Errorf("executor: containerd is not serving")
	}
	return nil
}

// Run pulls imageRef if not already present, creates a container named
// containerID running command with env, and starts it detached. It does
// not wait for completion — status is polled separately via Status.
func (r *ContainerRuntime) Run(ctx context.Context, containerID, imageRef string, command, env []string) error {
	ctx = namespaces.WithNamespace(ctx, namespace)

	image, err := r.client.GetImage(ctx, imageRef)
	if err != nil {
		image, err = r.client.Pull(ctx, imageRef, containerd.WithPullUnpack)
		if err != nil {
			return fmt.Errorf("executor: pulling image %s: %w", imageRef, err)
		}
	}

	opts := []oci.SpecOpts{oci.WithImageConfig(image), oci.WithEnv(env)}
	if len(command) > 0 {
		opts = append(opts, oci.WithProcessArgs(command...))
	}

	container, err := r.client.NewContainer(
		ctx,
		containerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(containerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return fmt.Errorf("executor: creating container %s: %w", containerID, err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("executor: creating task for %s: %w", containerID, err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("executor: starting task for %s: %w", containerID, err)
	}
	return nil
}

// Status reports containerID's current lifecycle state, using
// types.WorkloadStateTag's vocabulary: "running", "updated" (exited
// zero), "error" (exited nonzero), or "pending" (no task yet, or
// container absent).
func (r *ContainerRuntime) Status(ctx context.Context, containerID string) (string, error) {
	ctx = namespaces.WithNamespace(ctx, namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return "pending", nil
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return "pending", nil
	}
	status, err := task.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("executor: getting task status for %s: %w", containerID, err)
	}

	switch status.Status {
	case containerd.Running, containerd.Paused:
		return "running", nil
	case containerd.Stopped:
		if status.ExitStatus == 0 {
			return "updated", nil
		}
		return "error", nil
	default:
		return "pending", nil
	}
}

// Remove stops (SIGTERM, then SIGKILL after stopTimeout) and deletes
// containerID along with its snapshot. Absent containers are a no-op.
func (r *ContainerRuntime) Remove(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil
	}

	if task, err := container.Task(ctx, nil); err == nil {
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		if killErr := task.Kill(stopCtx, syscall.SIGTERM); killErr == nil {
			statusC, waitErr := task.Wait(stopCtx)
			if waitErr == nil {
				select {
				case <-statusC:
				case <-stopCtx.Done():
					_ = task.Kill(ctx, syscall.SIGKILL)
				}
			}
		}
		cancel()
		_, _ = task.Delete(ctx)
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("executor: deleting container %s: %w", containerID, err)
	}
	return nil
}
