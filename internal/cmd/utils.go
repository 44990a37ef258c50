package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gantry-sh/gantry/internal/builder"
	"github.com/gantry-sh/gantry/internal/config"
	"github.com/gantry-sh/gantry/internal/deployer"
	"github.com/gantry-sh/gantry/internal/docker"
	"github.com/gantry-sh/gantry/internal/gcloud"
	"github.com/gantry-sh/gantry/internal/history"
	"github.com/gantry-sh/gantry/internal/imageref"
	"github.com/gantry-sh/gantry/internal/pipeline"
	"github.com/gantry-sh/gantry/internal/publisher"
	"github.com/gantry-sh/gantry/internal/revision"
	"github.com/gantry-sh/gantry/internal/verifier"
)

const defaultManifestPath = "gantry.yaml"

// historyPath is where the local run ledger lives, relative to the
// working directory.
func historyPath() string {
	return filepath.Join(".gantry", "history.db")
}

// loadManifest loads the named manifest. When the default path does not
// exist the built-in defaults apply; a missing explicit path is an error.
func loadManifest(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && path == defaultManifestPath {
		return config.Default(), nil
	}
	return nil, err
}

// resolveRef derives the versioned image coordinate for this run. An
// explicit tag overrides the revision-derived one.
func resolveRef(ctx context.Context, contextDir, tagOverride string) (imageref.Ref, error) {
	tag := tagOverride
	if tag == "" {
		tag = revision.Resolve(ctx, contextDir)
	}

	ref := imageref.Ref{
		Region:     settings.Region,
		Project:    settings.Project,
		Repository: settings.Repository,
		Service:    settings.Service,
		Tag:        tag,
	}
	if err := ref.Validate(); err != nil {
		return imageref.Ref{}, err
	}
	return ref, nil
}

// newDockerClient opens an engine client; build and push streams only
// show up with --verbose.
func newDockerClient(ctx context.Context) (*docker.Client, error) {
	var out io.Writer = io.Discard
	if verbose {
		out = os.Stderr
	}

	client, err := docker.NewClient(out)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// newPipeline wires the full one-shot flow against real components.
func newPipeline(engine *docker.Client) (*pipeline.Pipeline, error) {
	cloud, err := gcloud.NewExecutor(verbose)
	if err != nil {
		return nil, err
	}

	target := deployer.Target{
		Project: settings.Project,
		Region:  settings.Region,
		Service: settings.Service,
	}

	return pipeline.New(
		builder.New(engine),
		publisher.New(engine, cloud),
		deployer.New(cloud, target, nil),
		verifier.New(nil),
		os.Stdout,
	), nil
}

// recordRun appends a pipeline result to the local ledger. Ledger
// problems never fail a deploy that already happened.
func recordRun(ctx context.Context, result *pipeline.Result) {
	store, err := history.Open(historyPath())
	if err != nil {
		slog.Warn("history ledger unavailable", "error", err)
		return
	}
	defer store.Close()

	_, err = store.Append(ctx, history.Run{
		Service:     settings.Service,
		Project:     settings.Project,
		Region:      settings.Region,
		Tag:         result.Ref.Tag,
		Image:       result.Ref.String(),
		Endpoint:    result.Endpoint,
		Outcome:     string(result.Outcome),
		FailedStage: string(result.FailedStage),
		DurationMS:  result.Duration.Milliseconds(),
		CreatedAt:   result.StartedAt.UTC(),
	})
	if err != nil {
		slog.Warn("failed to record run", "error", err)
	}
}

// formatDuration renders a run duration the way the history table shows it.
func formatDuration(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).Round(time.Second).String()
}

// contextWithoutCancel gives cleanup paths a fresh deadline after the
// command context was interrupted.
func contextWithoutCancel(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
