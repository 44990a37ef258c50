// Package builder produces the container image for a deployment.
package builder

import (
	"context"
	"fmt"
	"os"

	"github.com/gantry-sh/gantry/internal/docker"
	"github.com/gantry-sh/gantry/internal/imageref"
)

// BuildError reports a failed image build.
type BuildError struct {
	Ref string
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Ref, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Engine is the subset of the Docker client the builder needs.
type Engine interface {
	BuildImage(ctx context.Context, opts docker.BuildOptions) error
}

// Options describe one build.
type Options struct {
	// ContextDir is the build context root (source tree, dependency
	// manifest and Dockerfile).
	ContextDir string

	// Dockerfile is the Dockerfile path relative to ContextDir.
	Dockerfile string

	// Ref is the versioned coordinate the image is tagged with.
	Ref imageref.Ref

	// UseCache pulls layer cache from the image's cache coordinate.
	UseCache bool
}

// Builder builds images through a Docker engine.
type Builder struct {
	engine Engine
}

// New creates a Builder on top of an engine client.
func New(engine Engine) *Builder {
	return &Builder{engine: engine}
}

// Build produces the image for opts.Ref in local image storage. Nothing
// is pushed. Every failure is reported as a BuildError.
func (b *Builder) Build(ctx context.Context, opts Options) error {
	ref := opts.Ref.String()

	info, err := os.Stat(opts.ContextDir)
	if err != nil {
		return &BuildError{Ref: ref, Err: fmt.Errorf("build context %s: %w", opts.ContextDir, err)}
	}
	if !info.IsDir() {
		return &BuildError{Ref: ref, Err: fmt.Errorf("build context %s is not a directory", opts.ContextDir)}
	}

	engineOpts := docker.BuildOptions{
		ContextDir: opts.ContextDir,
		Dockerfile: opts.Dockerfile,
		Tags:       []string{ref},
	}
	if opts.UseCache {
		engineOpts.CacheFrom = []string{opts.Ref.Cache().String()}
	}

	if err := b.engine.BuildImage(ctx, engineOpts); err != nil {
		return &BuildError{Ref: ref, Err: err}
	}

	return nil
}
