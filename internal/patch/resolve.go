package patch

import (
	"context"
	"fmt"

	"github.com/abgoyal/image-patcher/internal/ghcr"
	"github.com/abgoyal/image-patcher/internal/packages"
)

func (p *Patcher) checkRegistry() error {
	if p.registry != ghcr.Host {
		return fmt.Errorf("%w: %q", ErrUnsupportedRegistry, p.registry)
	}
	return nil
}

// ResolveTags returns every repository:tag currently pointing at imageID.
// Nothing found is an empty result, not an error.
func (p *Patcher) ResolveTags(ctx context.Context, imageID string) ([]RepoTag, error) {
	if err := p.checkRegistry(); err != nil {
		return nil, err
	}

	manifests, err := p.packages.Find(ctx, packages.MatchDigest(imageID))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tags of %s: %w", imageID, err)
	}

	tags := []RepoTag{}
	for _, m := range manifests {
		for _, tag := range m.Tags {
			tags = append(tags, RepoTag{Repository: m.Repository, Tag: tag})
		}
	}
	return tags, nil
}

// resolveManifests returns the manifests of every version whose digest is one
// of imageIDs.
func (p *Patcher) resolveManifests(ctx context.Context, imageIDs []string) ([]packages.Manifest, error) {
	if err := p.checkRegistry(); err != nil {
		return nil, err
	}

	manifests, err := p.packages.Find(ctx, packages.MatchAny(imageIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifests: %w", err)
	}
	return manifests, nil
}
