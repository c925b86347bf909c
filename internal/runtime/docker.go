package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Labels set by docker compose on every container it manages.
const (
	LabelComposeProject = "com.docker.compose.project"
	LabelComposeService = "com.docker.compose.service"
)

// ContainerState is the runtime view of one service container.
type ContainerState struct {
	ID      string    `json:"id"      yaml:"id"`
	Name    string    `json:"name"    yaml:"name"`
	Image   string    `json:"image"   yaml:"image"`
	State   string    `json:"state"   yaml:"state"`
	Status  string    `json:"status"  yaml:"status"`
	Created time.Time `json:"created" yaml:"created"`
}

// Docker talks to the docker Engine API. It is used for reachability
// checks and for reporting container state; lifecycle changes go through
// Compose so that compose project semantics are preserved.
type Docker struct {
	cli *client.Client
}

// NewDocker creates a client. An empty host uses DOCKER_HOST or the
// default socket.
func NewDocker(host string) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return &Docker{cli: cli}, nil
}

// Ping checks that the docker daemon answers.
func (d *Docker) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return nil
}

// ServiceContainers lists the containers compose created for service in
// project, including stopped ones.
func (d *Docker) ServiceContainers(ctx context.Context, project, service string) ([]ContainerState, error) {
	f := filters.NewArgs(
		filters.Arg("label", LabelComposeProject+"="+project),
		filters.Arg("label", LabelComposeService+"="+service),
	)
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	states := make([]ContainerState, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		states = append(states, ContainerState{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			State:   string(c.State),
			Status:  c.Status,
			Created: time.Unix(c.Created, 0),
		})
	}
	return states, nil
}

// Close releases the client connection.
func (d *Docker) Close() error {
	return d.cli.Close()
}
