package gcloud

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateClassifiesFailureModes(t *testing.T) {
	execErr := errors.New("exit status 1")

	tests := []struct {
		name     string
		stderr   string
		wantIs   error
		wantText string
	}{
		{
			name:     "expired credentials",
			stderr:   "ERROR: (gcloud.auth.print-access-token) There was a problem refreshing your current auth tokens",
			wantIs:   ErrUnauthenticated,
			wantText: "gcloud auth login",
		},
		{
			name:     "no active account",
			stderr:   "ERROR: (gcloud.run.deploy) You do not currently have an active account selected.",
			wantIs:   ErrUnauthenticated,
			wantText: "gcloud auth login",
		},
		{
			name:     "permission denied",
			stderr:   "ERROR: (gcloud.run.deploy) PERMISSION_DENIED: Permission 'run.services.create' denied",
			wantIs:   ErrPermissionDenied,
			wantText: "run.services.create",
		},
		{
			name:     "missing repository",
			stderr:   "ERROR: (gcloud.artifacts.repositories.describe) NOT_FOUND: Requested entity was not found.",
			wantIs:   ErrNotFound,
			wantText: "Requested entity",
		},
		{
			name:     "quota exhausted",
			stderr:   "ERROR: (gcloud.run.deploy) RESOURCE_EXHAUSTED: Quota exceeded for quota metric 'Deployments'",
			wantIs:   ErrQuotaExceeded,
			wantText: "Quota exceeded",
		},
		{
			name:     "invalid flag value",
			stderr:   "ERROR: (gcloud.run.deploy) INVALID_ARGUMENT: Invalid value for memory: 2XL",
			wantIs:   ErrInvalidArgument,
			wantText: "memory",
		},
	}

	translator := NewErrorTranslator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translator.Translate(tt.stderr, execErr)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestTranslateUnknownErrorKeepsCause(t *testing.T) {
	execErr := errors.New("exit status 13")

	err := NewErrorTranslator().Translate("ERROR: (gcloud.run.deploy) something odd happened", execErr)
	require.Error(t, err)
	assert.ErrorIs(t, err, execErr)
	assert.Contains(t, err.Error(), "something odd happened")
	// The gcloud command prefix is stripped.
	assert.NotContains(t, err.Error(), "(gcloud.run.deploy)")
}

func TestTranslateEmptyStderr(t *testing.T) {
	execErr := errors.New("signal: killed")

	err := NewErrorTranslator().Translate("", execErr)
	require.Error(t, err)
	assert.ErrorIs(t, err, execErr)
}

func TestExtractErrorDetailTruncatesLongOutput(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}

	detail := NewErrorTranslator().extractErrorDetail(sb.String())

	lines := strings.Split(detail, "\n")
	assert.Len(t, lines, 6)
	assert.Contains(t, lines[5], "--verbose")
}

func TestExtractErrorDetailSkipsNoise(t *testing.T) {
	stderr := `Waiting for operation to complete...
WARNING: The following APIs are not enabled
ERROR: (gcloud.run.deploy) Deployment failed
..........done`

	detail := NewErrorTranslator().extractErrorDetail(stderr)
	assert.Equal(t, "Deployment failed", detail)
}
