// Package docker wraps the Docker Engine API for image builds, registry
// pushes and local container runs.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-connections/nat"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/moby/term"
)

// Client wraps the Docker Engine API.
type Client struct {
	cli *client.Client
	out io.Writer
}

// NewClient creates a Docker client from the environment (DOCKER_HOST et
// al.) with API version negotiation. Engine progress streams are written
// to out; pass io.Discard to silence them.
func NewClient(out io.Writer) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, NewDockerError("NewClient", "daemon", "", err.Error(), ErrDaemonUnreachable)
	}

	if out == nil {
		out = io.Discard
	}

	return &Client{cli: cli, out: out}, nil
}

// Ping checks that the Docker daemon is reachable.
func (d *Client) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "daemon", "", "is the docker daemon running?", ErrDaemonUnreachable)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *Client) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// BuildOptions control an image build.
type BuildOptions struct {
	// ContextDir is the build context root.
	ContextDir string

	// Dockerfile is the path of the Dockerfile relative to ContextDir.
	Dockerfile string

	// Tags to apply to the built image.
	Tags []string

	// CacheFrom lists images whose layers may be reused.
	CacheFrom []string
}

// BuildImage builds an image from a local context directory. The context
// is streamed to the daemon as a tar, honoring .dockerignore.
func (d *Client) BuildImage(ctx context.Context, opts BuildOptions) error {
	ref := primaryTag(opts.Tags)

	if _, err := os.Stat(filepath.Join(opts.ContextDir, opts.Dockerfile)); err != nil {
		return NewDockerError("BuildImage", "image", ref,
			fmt.Sprintf("dockerfile %s not found in %s", opts.Dockerfile, opts.ContextDir), ErrBuildFailed)
	}

	excludes, err := readDockerignore(opts.ContextDir)
	if err != nil {
		return NewDockerError("BuildImage", "image", ref, err.Error(), ErrBuildFailed)
	}
	// The daemon needs the build files even when .dockerignore excludes them.
	excludes = append(excludes, "!"+opts.Dockerfile, "!.dockerignore")

	buildCtx, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
	if err != nil {
		return NewDockerError("BuildImage", "image", ref, err.Error(), ErrBuildFailed)
	}
	defer buildCtx.Close()

	resp, err := d.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        opts.Tags,
		Dockerfile:  opts.Dockerfile,
		Remove:      true,
		ForceRemove: true,
		CacheFrom:   opts.CacheFrom,
	})
	if err != nil {
		return NewDockerError("BuildImage", "image", ref, err.Error(), ErrBuildFailed)
	}
	defer resp.Body.Close()

	return d.displayStream("BuildImage", ref, resp.Body, ErrBuildFailed)
}

// TagImage applies an additional tag to an existing local image.
func (d *Client) TagImage(ctx context.Context, source, target string) error {
	if err := d.cli.ImageTag(ctx, source, target); err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("TagImage", "image", source, "image not found locally", ErrImageNotFound)
		}
		return NewDockerError("TagImage", "image", source, err.Error(), err)
	}
	return nil
}

// RegistryAuth carries bearer credentials for a registry host.
type RegistryAuth struct {
	Host     string
	Username string
	Password string
}

// PushImage pushes a tagged image to its registry. Stream errors reported
// by the registry (denied, quota, unknown repository) surface as errors.
func (d *Client) PushImage(ctx context.Context, ref string, auth RegistryAuth) error {
	encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.Host,
	})
	if err != nil {
		return NewDockerError("PushImage", "image", ref, err.Error(), ErrPushFailed)
	}

	reader, err := d.cli.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: encoded})
	if err != nil {
		return NewDockerError("PushImage", "image", ref, err.Error(), classifyPushError(err.Error()))
	}
	defer reader.Close()

	if err := d.displayStream("PushImage", ref, reader, ErrPushFailed); err != nil {
		var derr *DockerError
		if errors.As(err, &derr) {
			derr.Err = classifyPushError(derr.Message)
		}
		return err
	}
	return nil
}

// ImageExists checks if an image exists locally.
func (d *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, NewDockerError("ImageExists", "image", ref, err.Error(), err)
	}
	return true, nil
}

// =============================================================================
// Container Operations
// =============================================================================

// RunSpec describes a locally run container.
type RunSpec struct {
	Image         string
	Name          string
	ContainerPort int
	HostPort      int
	Env           map[string]string
}

// RunContainer creates and starts a container with the container port
// published on the loopback interface. It returns the container ID.
func (d *Client) RunContainer(ctx context.Context, spec RunSpec) (string, error) {
	port := nat.Port(fmt.Sprintf("%d/tcp", spec.ContainerPort))

	cfg := &container.Config{
		Image:        spec.Image,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	for k, v := range spec.Env {
		cfg.Env = append(cfg.Env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(cfg.Env)

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(spec.HostPort)}},
		},
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		switch {
		case client.IsErrNotFound(err) || strings.Contains(err.Error(), "No such image"):
			return "", NewDockerError("RunContainer", "image", spec.Image, "image not found locally", ErrImageNotFound)
		case strings.Contains(err.Error(), "Conflict"):
			return "", NewDockerError("RunContainer", "container", spec.Name, "container name already in use", ErrContainerAlreadyExists)
		default:
			return "", NewDockerError("RunContainer", "container", spec.Name, err.Error(), err)
		}
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if strings.Contains(err.Error(), "port is already allocated") {
			return "", NewDockerError("RunContainer", "container", spec.Name, err.Error(), ErrPortAlreadyAllocated)
		}
		return "", NewDockerError("RunContainer", "container", resp.ID, err.Error(), err)
	}

	return resp.ID, nil
}

// StopContainer stops and removes a container.
func (d *Client) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := d.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds}); err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("StopContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return NewDockerError("StopContainer", "container", containerID, err.Error(), err)
	}

	if err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return NewDockerError("StopContainer", "container", containerID, err.Error(), err)
	}
	return nil
}

// ContainerLogs streams logs from a container.
func (d *Client) ContainerLogs(ctx context.Context, containerID string, follow bool) (io.ReadCloser, error) {
	reader, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("ContainerLogs", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return nil, NewDockerError("ContainerLogs", "container", containerID, err.Error(), err)
	}
	return reader, nil
}

// =============================================================================
// Helpers
// =============================================================================

// displayStream renders an engine JSON message stream and converts any
// embedded error message into a DockerError.
func (d *Client) displayStream(op, ref string, body io.Reader, kind error) error {
	fd, isTerm := term.GetFdInfo(d.out)
	if err := jsonmessage.DisplayJSONMessagesStream(body, d.out, fd, isTerm, nil); err != nil {
		var jerr *jsonmessage.JSONError
		if errors.As(err, &jerr) {
			return NewDockerError(op, "image", ref, jerr.Message, kind)
		}
		return NewDockerError(op, "image", ref, err.Error(), kind)
	}
	return nil
}

// classifyPushError distinguishes auth rejections from other push failures.
func classifyPushError(message string) error {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "denied") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "authentication required") {
		return ErrPushDenied
	}
	return ErrPushFailed
}

// readDockerignore loads exclusion patterns from the context directory.
func readDockerignore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read .dockerignore: %w", err)
	}
	return patterns, nil
}

func primaryTag(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return tags[0]
}
