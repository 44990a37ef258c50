// Package publisher moves built images into Artifact Registry and keeps
// the repository they live in provisioned.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/gantry-sh/gantry/internal/docker"
	"github.com/gantry-sh/gantry/internal/gcloud"
	"github.com/gantry-sh/gantry/internal/imageref"
)

// repositoryDescription labels repositories created by this tool.
const repositoryDescription = "Container images published by gantry"

// SetupError reports a failed registry repository lookup or creation.
type SetupError struct {
	Repository string
	Err        error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("registry repository %s: %v", e.Repository, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PublishError reports a failed push. Ref names the coordinate whose
// push failed, which may be the cache coordinate.
type PublishError struct {
	Ref string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Ref, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Engine is the subset of the Docker client the publisher needs.
type Engine interface {
	TagImage(ctx context.Context, source, target string) error
	PushImage(ctx context.Context, ref string, auth docker.RegistryAuth) error
}

// CloudCLI is the subset of the gcloud executor the publisher needs.
type CloudCLI interface {
	Run(ctx context.Context, args ...string) error
	AccessToken(ctx context.Context) (string, error)
}

// Publisher pushes images and provisions their target repository.
type Publisher struct {
	engine Engine
	cloud  CloudCLI
}

// New creates a Publisher.
func New(engine Engine, cloud CloudCLI) *Publisher {
	return &Publisher{engine: engine, cloud: cloud}
}

// EnsureRepository makes sure the Artifact Registry repository behind ref
// exists, creating it with fixed metadata when missing. Calling it for an
// existing repository is a no-op.
func (p *Publisher) EnsureRepository(ctx context.Context, ref imageref.Ref) error {
	describeArgs := []string{
		"artifacts", "repositories", "describe", ref.Repository,
		"--location=" + ref.Region,
		"--project=" + ref.Project,
	}

	err := p.cloud.Run(ctx, describeArgs...)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gcloud.ErrNotFound) {
		return &SetupError{Repository: ref.Repository, Err: err}
	}

	createArgs := []string{
		"artifacts", "repositories", "create", ref.Repository,
		"--repository-format=docker",
		"--location=" + ref.Region,
		"--project=" + ref.Project,
		"--description=" + repositoryDescription,
		"--quiet",
	}

	if err := p.cloud.Run(ctx, createArgs...); err != nil {
		return &SetupError{Repository: ref.Repository, Err: err}
	}

	return nil
}

// Publish pushes the versioned coordinate, then moves the cache
// coordinate to the same image and pushes it. The cache push never
// starts before the versioned push has completed; both must succeed.
func (p *Publisher) Publish(ctx context.Context, ref imageref.Ref) error {
	token, err := p.cloud.AccessToken(ctx)
	if err != nil {
		return &PublishError{Ref: ref.String(), Err: err}
	}

	auth := docker.RegistryAuth{
		Host:     ref.Host(),
		Username: "oauth2accesstoken",
		Password: token,
	}

	if err := p.engine.PushImage(ctx, ref.String(), auth); err != nil {
		return &PublishError{Ref: ref.String(), Err: err}
	}

	cache := ref.Cache()
	if err := p.engine.TagImage(ctx, ref.String(), cache.String()); err != nil {
		return &PublishError{
			Ref: cache.String(),
			Err: fmt.Errorf("%w (versioned image %s was pushed)", err, ref.String()),
		}
	}
	if err := p.engine.PushImage(ctx, cache.String(), auth); err != nil {
		return &PublishError{
			Ref: cache.String(),
			Err: fmt.Errorf("%w (versioned image %s was pushed)", err, ref.String()),
		}
	}

	return nil
}
