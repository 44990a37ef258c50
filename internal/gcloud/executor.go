// Package gcloud wraps the Google Cloud CLI for Artifact Registry and
// Cloud Run operations.
package gcloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Executor handles gcloud command execution.
type Executor struct {
	gcloudPath string
	translator *ErrorTranslator
	verbose    bool
}

// NewExecutor creates a new gcloud executor.
func NewExecutor(verbose bool) (*Executor, error) {
	gcloudPath, err := findGcloud()
	if err != nil {
		return nil, fmt.Errorf("gcloud not found: %w (install the Google Cloud SDK and run 'gcloud auth login')", err)
	}

	return &Executor{
		gcloudPath: gcloudPath,
		translator: NewErrorTranslator(),
		verbose:    verbose,
	}, nil
}

// Run executes a gcloud command, discarding stdout unless verbose.
func (e *Executor) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, e.gcloudPath, args...)

	var stderr bytes.Buffer
	if e.verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderr
	}

	slog.Debug("running gcloud", "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		return e.translator.Translate(stderr.String(), err)
	}

	return nil
}

// Output executes a gcloud command and returns its trimmed stdout.
func (e *Executor) Output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.gcloudPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("running gcloud", "args", strings.Join(args, " "))

	output, err := cmd.Output()
	if err != nil {
		return "", e.translator.Translate(stderr.String(), err)
	}

	return strings.TrimSpace(string(output)), nil
}

// AccessToken returns a short-lived OAuth bearer token for the active
// gcloud account, used to authenticate registry pushes and manifest reads.
func (e *Executor) AccessToken(ctx context.Context) (string, error) {
	token, err := e.Output(ctx, "auth", "print-access-token")
	if err != nil {
		return "", fmt.Errorf("failed to obtain registry credentials: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("failed to obtain registry credentials: empty token (run 'gcloud auth login')")
	}
	return token, nil
}

// Version returns the installed Google Cloud SDK version string.
func (e *Executor) Version(ctx context.Context) (string, error) {
	return e.Output(ctx, "version")
}

// findGcloud locates the gcloud binary.
func findGcloud() (string, error) {
	if path, err := exec.LookPath("gcloud"); err == nil {
		return path, nil
	}

	// Check the default SDK install location
	home := os.Getenv("HOME")
	sdkGcloud := filepath.Join(home, "google-cloud-sdk", "bin", "gcloud")
	if _, err := os.Stat(sdkGcloud); err == nil {
		return sdkGcloud, nil
	}

	return "", fmt.Errorf("gcloud not found in PATH or ~/google-cloud-sdk/bin")
}
