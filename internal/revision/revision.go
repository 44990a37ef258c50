// Package revision derives the image version tag from source control state.
package revision

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// FallbackTag is used when no revision can be derived from the source tree.
const FallbackTag = "latest"

// Resolve returns the short commit hash of HEAD in dir, suitable for use
// as an image tag. When git is missing, dir is not a repository, or the
// hash cannot be read for any other reason, it returns FallbackTag. The
// result is never empty.
func Resolve(ctx context.Context, dir string) string {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		slog.Debug("git not found, falling back to default tag", "tag", FallbackTag)
		return FallbackTag
	}

	cmd := exec.CommandContext(ctx, gitPath, "rev-parse", "--short", "HEAD")
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		slog.Debug("failed to read HEAD revision, falling back to default tag",
			"dir", dir, "tag", FallbackTag, "error", err)
		return FallbackTag
	}

	tag := strings.TrimSpace(string(output))
	if tag == "" {
		return FallbackTag
	}

	return tag
}
