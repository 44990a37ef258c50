// Package imageref models fully qualified Artifact Registry image coordinates.
package imageref

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// CacheTag is the mutable tag that always tracks the most recently
// published image. Builds pull layer cache from it, publishes move it.
const CacheTag = "buildcache"

// registryDomain is the Artifact Registry host suffix. The full host is
// regional, e.g. asia-south1-docker.pkg.dev.
const registryDomain = "docker.pkg.dev"

// Ref identifies a single image in a regional Artifact Registry repository.
type Ref struct {
	Region     string
	Project    string
	Repository string
	Service    string
	Tag        string
}

// Host returns the regional registry hostname.
func (r Ref) Host() string {
	return r.Region + "-" + registryDomain
}

// String renders the fully qualified reference,
// <region>-docker.pkg.dev/<project>/<repository>/<service>:<tag>.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s/%s/%s:%s", r.Host(), r.Project, r.Repository, r.Service, r.Tag)
}

// WithTag returns a copy of the reference pointing at a different tag.
func (r Ref) WithTag(tag string) Ref {
	r.Tag = tag
	return r
}

// Cache returns the cache coordinate for the same image.
func (r Ref) Cache() Ref {
	return r.WithTag(CacheTag)
}

// Validate checks that all components are present and that the rendered
// reference parses as a strictly valid tagged image name.
func (r Ref) Validate() error {
	if r.Region == "" {
		return fmt.Errorf("image reference: region is required")
	}
	if r.Project == "" {
		return fmt.Errorf("image reference: project is required")
	}
	if r.Repository == "" {
		return fmt.Errorf("image reference: repository is required")
	}
	if r.Service == "" {
		return fmt.Errorf("image reference: service is required")
	}
	if r.Tag == "" {
		return fmt.Errorf("image reference: tag is required")
	}

	if _, err := name.NewTag(r.String(), name.StrictValidation); err != nil {
		return fmt.Errorf("invalid image reference %q: %w", r.String(), err)
	}

	return nil
}

// Parse splits a fully qualified Artifact Registry reference back into
// its components. It rejects references for other registries.
func Parse(s string) (Ref, error) {
	tag, err := name.NewTag(s, name.StrictValidation)
	if err != nil {
		return Ref{}, fmt.Errorf("parse image reference %q: %w", s, err)
	}

	host := tag.RegistryStr()
	region, ok := strings.CutSuffix(host, "-"+registryDomain)
	if !ok || region == "" {
		return Ref{}, fmt.Errorf("parse image reference %q: %s is not an Artifact Registry host", s, host)
	}

	// RepositoryStr is <project>/<repository>/<service>
	parts := strings.Split(tag.RepositoryStr(), "/")
	if len(parts) != 3 {
		return Ref{}, fmt.Errorf("parse image reference %q: expected <project>/<repository>/<service> path, got %q", s, tag.RepositoryStr())
	}

	return Ref{
		Region:     region,
		Project:    parts[0],
		Repository: parts[1],
		Service:    parts[2],
		Tag:        tag.TagStr(),
	}, nil
}
