package deployer

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// CheckManifest issues a manifest HEAD against the registry to confirm
// the image is actually pullable before the platform is asked to run it.
// A missing or unreadable manifest here saves a slow platform-side
// failure later.
func CheckManifest(ctx context.Context, image, token string) error {
	ref, err := name.ParseReference(image, name.StrictValidation)
	if err != nil {
		return fmt.Errorf("parse image reference: %w", err)
	}

	auth := authn.FromConfig(authn.AuthConfig{
		Username: "oauth2accesstoken",
		Password: token,
	})

	if _, err := remote.Head(ref, remote.WithContext(ctx), remote.WithAuth(auth)); err != nil {
		return fmt.Errorf("registry manifest check: %w", err)
	}

	return nil
}
