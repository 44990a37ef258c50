// Package deployer pushes a published image into a running Cloud Run
// service and exposes the revision operations an operator needs after a
// deploy (endpoint lookup, revision listing, manual traffic rollback).
package deployer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gantry-sh/gantry/internal/config"
	"github.com/gantry-sh/gantry/internal/imageref"
)

// DeployError reports a deploy the platform rejected or could not complete.
type DeployError struct {
	Service string
	Err     error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy %s: %v", e.Service, e.Err)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// CloudCLI is the subset of the gcloud executor the deployer needs.
type CloudCLI interface {
	Run(ctx context.Context, args ...string) error
	Output(ctx context.Context, args ...string) (string, error)
	AccessToken(ctx context.Context) (string, error)
}

// ManifestCheck confirms an image manifest is reachable in the registry
// with the given bearer token.
type ManifestCheck func(ctx context.Context, image, token string) error

// Target names the service a Deployer operates on.
type Target struct {
	Project string
	Region  string
	Service string
}

// Deployer drives Cloud Run through the gcloud CLI.
type Deployer struct {
	cloud  CloudCLI
	target Target
	check  ManifestCheck
}

// New creates a Deployer for one service. The manifest check runs before
// every deploy; pass nil to use the registry-backed default.
func New(cloud CloudCLI, target Target, check ManifestCheck) *Deployer {
	if check == nil {
		check = CheckManifest
	}
	return &Deployer{cloud: cloud, target: target, check: check}
}

// Deploy replaces the service's entire configuration with cfg and shifts
// traffic to a new revision running ref. Deploying the same image and
// configuration twice is safe; the platform just cuts a new revision.
// Old revisions stay retained for rollback but receive no traffic.
func (d *Deployer) Deploy(ctx context.Context, ref imageref.Ref, cfg config.DeployConfig) error {
	token, err := d.cloud.AccessToken(ctx)
	if err != nil {
		return &DeployError{Service: d.target.Service, Err: err}
	}
	if err := d.check(ctx, ref.String(), token); err != nil {
		return &DeployError{
			Service: d.target.Service,
			Err:     fmt.Errorf("image %s is not reachable in the registry: %w", ref.String(), err),
		}
	}

	if err := d.cloud.Run(ctx, deployArgs(d.target, ref, cfg)...); err != nil {
		return &DeployError{Service: d.target.Service, Err: err}
	}

	return nil
}

// ServiceURL returns the endpoint the platform assigned to the service.
func (d *Deployer) ServiceURL(ctx context.Context) (string, error) {
	url, err := d.cloud.Output(ctx,
		"run", "services", "describe", d.target.Service,
		"--project="+d.target.Project,
		"--region="+d.target.Region,
		"--platform=managed",
		"--format=value(status.url)",
	)
	if err != nil {
		return "", &DeployError{Service: d.target.Service, Err: fmt.Errorf("resolve service URL: %w", err)}
	}
	if url == "" {
		return "", &DeployError{Service: d.target.Service, Err: fmt.Errorf("platform returned no service URL")}
	}
	return url, nil
}

// Revision describes one retained service revision.
type Revision struct {
	Name   string
	Active bool
}

// Revisions lists the service's retained revisions, newest first. The
// revision currently carrying traffic is marked active.
func (d *Deployer) Revisions(ctx context.Context) ([]Revision, error) {
	out, err := d.cloud.Output(ctx,
		"run", "revisions", "list",
		"--service="+d.target.Service,
		"--project="+d.target.Project,
		"--region="+d.target.Region,
		"--platform=managed",
		"--format=value(metadata.name,status.conditions[0].status)",
	)
	if err != nil {
		return nil, &DeployError{Service: d.target.Service, Err: fmt.Errorf("list revisions: %w", err)}
	}

	var revisions []Revision
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rev := Revision{Name: fields[0]}
		if len(fields) > 1 && fields[1] == "True" {
			rev.Active = true
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

// Rollback shifts 100% of traffic to a named prior revision. It never
// runs automatically; the one-shot flow leaves failed verifications in
// place for the operator to act on.
func (d *Deployer) Rollback(ctx context.Context, revision string) error {
	err := d.cloud.Run(ctx,
		"run", "services", "update-traffic", d.target.Service,
		"--project="+d.target.Project,
		"--region="+d.target.Region,
		"--platform=managed",
		"--to-revisions="+revision+"=100",
		"--quiet",
	)
	if err != nil {
		return &DeployError{Service: d.target.Service, Err: fmt.Errorf("rollback to %s: %w", revision, err)}
	}
	return nil
}

// deployArgs renders the full Deployment Configuration into gcloud flags.
// Every deploy carries the complete configuration; there are no partial
// updates.
func deployArgs(target Target, ref imageref.Ref, cfg config.DeployConfig) []string {
	args := []string{
		"run", "deploy", target.Service,
		"--image=" + ref.String(),
		"--project=" + target.Project,
		"--region=" + target.Region,
		"--platform=managed",
		"--port=" + strconv.Itoa(cfg.Port),
		"--memory=" + cfg.Memory,
		"--cpu=" + strconv.Itoa(cfg.CPU),
		"--min-instances=" + strconv.Itoa(cfg.MinInstances),
		"--max-instances=" + strconv.Itoa(cfg.MaxInstances),
		"--concurrency=" + strconv.Itoa(cfg.Concurrency),
		"--timeout=" + strconv.Itoa(cfg.TimeoutSeconds),
	}

	if cfg.Access == config.AccessPublic {
		args = append(args, "--allow-unauthenticated")
	} else {
		args = append(args, "--no-allow-unauthenticated")
	}

	if len(cfg.Env) > 0 {
		keys := make([]string, 0, len(cfg.Env))
		for k := range cfg.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+cfg.Env[k])
		}
		args = append(args, "--set-env-vars="+strings.Join(pairs, ","))
	}

	return append(args, "--quiet")
}
