package revision

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStubGit places a fake git executable on PATH that runs the given
// shell body for every invocation.
func writeStubGit(t *testing.T, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require a POSIX shell")
	}

	binDir := t.TempDir()
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "git"), []byte(script), 0o755))
	t.Setenv("PATH", binDir)
}

func TestResolveReturnsShortHash(t *testing.T) {
	writeStubGit(t, `echo "abc1234"`)

	tag := Resolve(context.Background(), t.TempDir())
	assert.Equal(t, "abc1234", tag)
}

func TestResolveTrimsWhitespace(t *testing.T) {
	writeStubGit(t, `printf "  f00dcafe\n\n"`)

	tag := Resolve(context.Background(), t.TempDir())
	assert.Equal(t, "f00dcafe", tag)
}

func TestResolveFallsBackWhenGitFails(t *testing.T) {
	writeStubGit(t, `echo "fatal: not a git repository" >&2; exit 128`)

	tag := Resolve(context.Background(), t.TempDir())
	assert.Equal(t, FallbackTag, tag)
}

func TestResolveFallsBackWhenGitMissing(t *testing.T) {
	// An empty PATH means LookPath cannot find git.
	t.Setenv("PATH", t.TempDir())

	tag := Resolve(context.Background(), t.TempDir())
	assert.Equal(t, FallbackTag, tag)
}

func TestResolveFallsBackOnEmptyOutput(t *testing.T) {
	writeStubGit(t, `echo ""`)

	tag := Resolve(context.Background(), t.TempDir())
	assert.Equal(t, FallbackTag, tag)
}
