// Package pipeline sequences the one-shot deploy flow: ensure the
// registry repository, build, publish, deploy, verify. Stages run
// strictly in order, each gated on the previous one's success, and the
// first failure terminates the run. Nothing is retried and nothing is
// rolled back automatically.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gantry-sh/gantry/internal/builder"
	"github.com/gantry-sh/gantry/internal/config"
	"github.com/gantry-sh/gantry/internal/imageref"
	"github.com/gantry-sh/gantry/internal/verifier"
)

// Stage names one step of the flow.
type Stage string

const (
	StageSetup   Stage = "setup"
	StageBuild   Stage = "build"
	StagePublish Stage = "publish"
	StageDeploy  Stage = "deploy"
	StageVerify  Stage = "verify"
)

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeNotReady  Outcome = "not_ready"
)

// StageError wraps a component failure with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Builder produces the image in local storage.
type Builder interface {
	Build(ctx context.Context, opts builder.Options) error
}

// Publisher provisions the registry repository and pushes images.
type Publisher interface {
	EnsureRepository(ctx context.Context, ref imageref.Ref) error
	Publish(ctx context.Context, ref imageref.Ref) error
}

// Deployer runs the published image on the platform.
type Deployer interface {
	Deploy(ctx context.Context, ref imageref.Ref, cfg config.DeployConfig) error
	ServiceURL(ctx context.Context) (string, error)
}

// Verifier probes the deployed endpoint.
type Verifier interface {
	Wait(ctx context.Context, opts verifier.Options) error
}

// Options control one run.
type Options struct {
	// Ref is the versioned image coordinate for this run.
	Ref imageref.Ref

	// Manifest carries the build, deploy and verify configuration.
	Manifest *config.Config

	// UseCache pulls layer cache from the cache coordinate.
	UseCache bool

	// SkipVerify ends the run at Deploy.
	SkipVerify bool

	// OnProbe is passed through to the verifier.
	OnProbe func(err error)
}

// Result describes a finished run, successful or not. Endpoint is set
// whenever the deploy completed, including not-ready runs.
type Result struct {
	Ref         imageref.Ref
	Endpoint    string
	Outcome     Outcome
	FailedStage Stage
	StartedAt   time.Time
	Duration    time.Duration
}

// Pipeline wires the four components into the one-shot flow.
type Pipeline struct {
	builder   Builder
	publisher Publisher
	deployer  Deployer
	verifier  Verifier
	out       io.Writer
}

// New creates a Pipeline. Progress lines go to out; pass io.Discard to
// silence them.
func New(b Builder, p Publisher, d Deployer, v Verifier, out io.Writer) *Pipeline {
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{builder: b, publisher: p, deployer: d, verifier: v, out: out}
}

// Run executes the flow. The returned Result is always usable, even
// when err is non-nil; err is a *StageError naming the failed stage.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{
		Ref:       opts.Ref,
		StartedAt: time.Now(),
	}

	fail := func(stage Stage, outcome Outcome, err error) (*Result, error) {
		result.Outcome = outcome
		result.FailedStage = stage
		result.Duration = time.Since(result.StartedAt)
		return result, &StageError{Stage: stage, Err: err}
	}

	fmt.Fprintf(p.out, "🔍 Ensuring registry repository %s exists\n", opts.Ref.Repository)
	if err := p.publisher.EnsureRepository(ctx, opts.Ref); err != nil {
		return fail(StageSetup, OutcomeFailed, err)
	}

	fmt.Fprintf(p.out, "🔨 Building %s\n", opts.Ref.String())
	err := p.builder.Build(ctx, builder.Options{
		ContextDir: opts.Manifest.Build.Context,
		Dockerfile: opts.Manifest.Build.Dockerfile,
		Ref:        opts.Ref,
		UseCache:   opts.UseCache,
	})
	if err != nil {
		return fail(StageBuild, OutcomeFailed, err)
	}

	fmt.Fprintf(p.out, "📦 Publishing %s (and refreshing the %s tag)\n", opts.Ref.String(), imageref.CacheTag)
	if err := p.publisher.Publish(ctx, opts.Ref); err != nil {
		return fail(StagePublish, OutcomeFailed, err)
	}

	fmt.Fprintf(p.out, "🚀 Deploying %s to Cloud Run\n", opts.Ref.Service)
	if err := p.deployer.Deploy(ctx, opts.Ref, opts.Manifest.Deploy); err != nil {
		return fail(StageDeploy, OutcomeFailed, err)
	}

	endpoint, err := p.deployer.ServiceURL(ctx)
	if err != nil {
		return fail(StageDeploy, OutcomeFailed, err)
	}
	result.Endpoint = endpoint

	if !opts.SkipVerify {
		fmt.Fprintf(p.out, "🩺 Verifying %s%s\n", endpoint, opts.Manifest.Verify.Path)
		err := p.verifier.Wait(ctx, verifier.Options{
			Endpoint:  endpoint,
			Path:      opts.Manifest.Verify.Path,
			Timeout:   time.Duration(opts.Manifest.Verify.TimeoutSeconds) * time.Second,
			Interval:  time.Duration(opts.Manifest.Verify.IntervalSeconds) * time.Second,
			OnAttempt: opts.OnProbe,
		})
		if err != nil {
			// The deploy itself completed; the revision stays in
			// place and rollback remains a manual operation.
			return fail(StageVerify, OutcomeNotReady, err)
		}
	}

	result.Outcome = OutcomeSucceeded
	result.Duration = time.Since(result.StartedAt)
	fmt.Fprintf(p.out, "✅ %s is serving\n", opts.Ref.Service)
	return result, nil
}
