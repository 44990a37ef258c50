package gcloud

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound indicates the requested cloud resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthenticated indicates gcloud has no usable credentials.
	ErrUnauthenticated = errors.New("gcloud is not authenticated")

	// ErrPermissionDenied indicates the active account lacks a required role.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrQuotaExceeded indicates a project quota or rate limit was hit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrInvalidArgument indicates the platform rejected a flag or value.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorTranslator converts raw gcloud stderr into operator-friendly errors.
type ErrorTranslator struct{}

// NewErrorTranslator creates a new error translator.
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate maps gcloud stderr output to a friendly error. The returned
// error wraps one of the package sentinels when the failure mode is
// recognized, otherwise the original execution error.
func (t *ErrorTranslator) Translate(stderr string, execErr error) error {
	switch {
	case containsAny(stderr,
		"There was a problem refreshing your current auth tokens",
		"You do not currently have an active account selected",
		"Reauthentication required",
		"UNAUTHENTICATED"):
		return fmt.Errorf("%w: run 'gcloud auth login' and retry", ErrUnauthenticated)

	case containsAny(stderr, "PERMISSION_DENIED", "Permission denied", "does not have permission"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, t.extractErrorDetail(stderr))

	case containsAny(stderr, "NOT_FOUND", "was not found", "could not be found", "not found"):
		return fmt.Errorf("%w: %s", ErrNotFound, t.extractErrorDetail(stderr))

	case containsAny(stderr, "RESOURCE_EXHAUSTED", "Quota exceeded", "rate limit"):
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, t.extractErrorDetail(stderr))

	case containsAny(stderr, "INVALID_ARGUMENT", "Invalid value", "unrecognized arguments"):
		return fmt.Errorf("%w: %s", ErrInvalidArgument, t.extractErrorDetail(stderr))
	}

	detail := t.extractErrorDetail(stderr)
	if detail == "" {
		return fmt.Errorf("gcloud command failed: %w", execErr)
	}
	return fmt.Errorf("gcloud command failed: %s: %w", detail, execErr)
}

// extractErrorDetail pulls the most relevant lines out of gcloud stderr,
// stripping the CLI's own prefixes and progress noise.
func (t *ErrorTranslator) extractErrorDetail(stderr string) string {
	lines := strings.Split(stderr, "\n")
	var relevant []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Skip progress spinners and deprecation chatter
		if strings.HasPrefix(line, "Updated property") ||
			strings.HasPrefix(line, "WARNING: ") ||
			strings.HasPrefix(line, "Waiting for") ||
			strings.HasPrefix(line, "..") {
			continue
		}
		relevant = append(relevant, cleanLine(line))
	}
	if len(relevant) > 5 {
		relevant = relevant[:5]
		relevant = append(relevant, "... (run with --verbose for full output)")
	}
	return strings.Join(relevant, "\n")
}

var gcloudPrefix = regexp.MustCompile(`^ERROR: \(gcloud[^)]*\)\s*`)

// cleanLine removes the "ERROR: (gcloud.run.deploy)" style prefix.
func cleanLine(line string) string {
	return gcloudPrefix.ReplaceAllString(line, "")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
