package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// execAPI is the subset of the Docker engine used by the runner.
type execAPI interface {
	exec(ctx context.Context, containerID string, opts container.ExecOptions) (Result, error)
	running(ctx context.Context, containerID string) (bool, error)
}

// Docker runs commands inside a long-lived speech container. File paths in
// templates must resolve to the same location in the container, typically
// through a shared bind mount of the runtime I/O directory.
type Docker struct {
	api         execAPI
	containerID string
	user        string
}

// NewDocker creates a runner bound to the named container.
func NewDocker(containerID, user string) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Docker speech runner initialized", "container", containerID)
	return &Docker{api: &engine{cli: cli}, containerID: containerID, user: user}, nil
}

// Run executes command through sh -c inside the container.
func (d *Docker) Run(ctx context.Context, command, dir string) (Result, error) {
	ok, err := d.api.running(ctx, d.containerID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("speech container %s is not running", d.containerID)
	}

	return d.api.exec(ctx, d.containerID, container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		User:         d.user,
		WorkingDir:   dir,
		AttachStdout: true,
		AttachStderr: true,
	})
}

// Running reports whether the speech container is up.
func (d *Docker) Running(ctx context.Context) (bool, error) {
	return d.api.running(ctx, d.containerID)
}

// Available checks that the container is running and can resolve binary.
func (d *Docker) Available(ctx context.Context, binary string) bool {
	if binary == "" {
		return false
	}
	res, err := d.Run(ctx, "command -v "+binary, "")
	if err != nil {
		slog.Debug("Speech container probe failed", "binary", binary, "error", err)
		return false
	}
	return res.ExitCode == 0
}

type engine struct {
	cli *client.Client
}

func (e *engine) exec(ctx context.Context, containerID string, opts container.ExecOptions) (Result, error) {
	resp, err := e.cli.ContainerExecCreate(ctx, containerID, opts)
	if err != nil {
		return Result{}, fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	// Non-TTY exec output is multiplexed.
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return Result{}, fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return Result{}, fmt.Errorf("inspect exec: %w", err)
	}

	return Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

func (e *engine) running(ctx context.Context, containerID string) (bool, error) {
	inspect, err := e.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect container %s: %w", containerID, err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}
