package docker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"github.com/netimpair/netimpair/internal/types"
)

// Resolver maps a container reference to the path of its network namespace,
// so an impairment run can target the container's own interfaces.
type Resolver struct {
	client *client.Client
	log    logrus.FieldLogger
}

// NewResolver creates a Docker client from the environment with API version
// negotiation and verifies connectivity to the daemon.
func NewResolver(ctx context.Context, log logrus.FieldLogger) (*Resolver, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	r := &Resolver{
		client: cli,
		log:    log.WithField("package", "docker"),
	}

	pong, err := cli.Ping(ctx)
	if err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}

	r.log.WithField("api_version", pong.APIVersion).Debug("Docker daemon ping successful")
	return r, nil
}

// Close closes the Docker client connection.
func (r *Resolver) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Docker client: %w", err)
	}
	return nil
}

// NetworkNamespacePath resolves a container name or ID to the path of its
// network namespace under /proc. The container must be running.
func (r *Resolver) NetworkNamespacePath(ctx context.Context, ref string) (string, error) {
	r.log.WithField("container", ref).Debug("Resolving container network namespace")

	inspect, err := r.client.ContainerInspect(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("%w: %s", types.ErrContainerNotFound, ref)
		}
		return "", fmt.Errorf("failed to inspect container %s: %w", ref, err)
	}

	nsPath, err := namespacePath(inspect)
	if err != nil {
		return "", fmt.Errorf("container %s: %w", ref, err)
	}

	r.log.WithFields(logrus.Fields{
		"container":  ref,
		"netns_path": nsPath,
	}).Debug("Resolved container network namespace")

	return nsPath, nil
}

// namespacePath extracts the network namespace path from container
// inspection data.
func namespacePath(inspect dockertypes.ContainerJSON) (string, error) {
	if inspect.ContainerJSONBase == nil || inspect.State == nil {
		return "", errors.New("container state information not available")
	}

	if !inspect.State.Running || inspect.State.Pid == 0 {
		return "", errors.New("container is not running")
	}

	return filepath.Join("/proc", strconv.Itoa(inspect.State.Pid), "ns", "net"), nil
}
