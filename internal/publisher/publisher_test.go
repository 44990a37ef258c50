package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry-sh/gantry/internal/docker"
	"github.com/gantry-sh/gantry/internal/gcloud"
	"github.com/gantry-sh/gantry/internal/imageref"
)

type fakeEngine struct {
	calls    []string
	auths    []docker.RegistryAuth
	tagErr   error
	pushErrs map[string]error
}

func (f *fakeEngine) TagImage(_ context.Context, source, target string) error {
	f.calls = append(f.calls, "tag "+source+" -> "+target)
	return f.tagErr
}

func (f *fakeEngine) PushImage(_ context.Context, ref string, auth docker.RegistryAuth) error {
	f.calls = append(f.calls, "push "+ref)
	f.auths = append(f.auths, auth)
	return f.pushErrs[ref]
}

type fakeCloud struct {
	runCalls [][]string
	runErrs  []error
	token    string
	tokenErr error
}

func (f *fakeCloud) Run(_ context.Context, args ...string) error {
	f.runCalls = append(f.runCalls, args)
	if len(f.runErrs) == 0 {
		return nil
	}
	err := f.runErrs[0]
	f.runErrs = f.runErrs[1:]
	return err
}

func (f *fakeCloud) AccessToken(_ context.Context) (string, error) {
	return f.token, f.tokenErr
}

func testRef() imageref.Ref {
	return imageref.Ref{
		Region:     "asia-south1",
		Project:    "zomato-insights",
		Repository: "zomato-apps",
		Service:    "zomato-app",
		Tag:        "abc1234",
	}
}

const (
	versionedRef = "asia-south1-docker.pkg.dev/zomato-insights/zomato-apps/zomato-app:abc1234"
	cacheRef     = "asia-south1-docker.pkg.dev/zomato-insights/zomato-apps/zomato-app:buildcache"
)

// =============================================================================
// EnsureRepository
// =============================================================================

func TestEnsureRepositoryExistingIsNoOp(t *testing.T) {
	cloud := &fakeCloud{}
	p := New(&fakeEngine{}, cloud)

	require.NoError(t, p.EnsureRepository(context.Background(), testRef()))
	require.NoError(t, p.EnsureRepository(context.Background(), testRef()))

	// Only describes, never a create.
	require.Len(t, cloud.runCalls, 2)
	for _, call := range cloud.runCalls {
		assert.Equal(t, "describe", call[2])
	}
}

func TestEnsureRepositoryCreatesWhenMissing(t *testing.T) {
	cloud := &fakeCloud{runErrs: []error{gcloud.ErrNotFound, nil}}
	p := New(&fakeEngine{}, cloud)

	require.NoError(t, p.EnsureRepository(context.Background(), testRef()))

	require.Len(t, cloud.runCalls, 2)
	create := cloud.runCalls[1]
	assert.Equal(t, "create", create[2])
	assert.Contains(t, create, "--repository-format=docker")
	assert.Contains(t, create, "--location=asia-south1")
}

func TestEnsureRepositoryPermissionFailureIsSetupError(t *testing.T) {
	cause := gcloud.ErrPermissionDenied
	cloud := &fakeCloud{runErrs: []error{cause}}
	p := New(&fakeEngine{}, cloud)

	err := p.EnsureRepository(context.Background(), testRef())

	var se *SetupError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, cloud.runCalls, 1, "no create attempt after a non-not-found failure")
}

// =============================================================================
// Publish ordering
// =============================================================================

func TestPublishPushesVersionedBeforeCache(t *testing.T) {
	engine := &fakeEngine{}
	p := New(engine, &fakeCloud{token: "tok"})

	require.NoError(t, p.Publish(context.Background(), testRef()))

	assert.Equal(t, []string{
		"push " + versionedRef,
		"tag " + versionedRef + " -> " + cacheRef,
		"push " + cacheRef,
	}, engine.calls)

	require.Len(t, engine.auths, 2)
	assert.Equal(t, "oauth2accesstoken", engine.auths[0].Username)
	assert.Equal(t, "tok", engine.auths[0].Password)
}

func TestPublishVersionedFailureSkipsCachePush(t *testing.T) {
	engine := &fakeEngine{pushErrs: map[string]error{versionedRef: errors.New("denied")}}
	p := New(engine, &fakeCloud{token: "tok"})

	err := p.Publish(context.Background(), testRef())

	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, versionedRef, pe.Ref)
	assert.Equal(t, []string{"push " + versionedRef}, engine.calls, "cache tag must never move before the versioned push succeeds")
}

func TestPublishCacheFailureFailsTheRun(t *testing.T) {
	engine := &fakeEngine{pushErrs: map[string]error{cacheRef: errors.New("quota")}}
	p := New(engine, &fakeCloud{token: "tok"})

	err := p.Publish(context.Background(), testRef())

	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, cacheRef, pe.Ref)
	// The error still tells the operator the versioned image made it.
	assert.Contains(t, err.Error(), versionedRef)
}

func TestPublishNoTokenNoPush(t *testing.T) {
	engine := &fakeEngine{}
	p := New(engine, &fakeCloud{tokenErr: errors.New("not authenticated")})

	err := p.Publish(context.Background(), testRef())

	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, engine.calls)
}
