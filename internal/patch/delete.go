package patch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/abgoyal/image-patcher/internal/ghcr"
)

// DeleteUntagged deletes every version of imageIDs that no longer has a tag.
// Tagged versions are left alone, as are manifests the registry no longer
// holds. The first failed delete stops the run.
func (p *Patcher) DeleteUntagged(ctx context.Context, imageIDs []string) error {
	p.logger.Info("deleting untagged images")

	manifests, err := p.resolveManifests(ctx, imageIDs)
	if err != nil {
		return err
	}
	p.logger.Info("manifests found", "count", len(manifests))

	for _, m := range manifests {
		if len(m.Tags) > 0 {
			p.logger.Info("skipping tagged manifest", "digest", m.Digest, "tags", m.Tags)
			continue
		}

		if _, err := p.manifests.Head(ctx, m.Repository, m.Digest); err != nil {
			if errors.Is(err, ghcr.ErrManifestNotFound) {
				p.logger.Info("manifest already gone", "image", m.Repository+"@"+m.Digest)
				continue
			}
			return fmt.Errorf("%w %s@%s: %w", ErrDeleteFailed, m.Repository, m.Digest, err)
		}

		p.logger.Info("deleting", "image", m.Repository+"@"+m.Digest)
		if err := p.manifests.Delete(ctx, m.Repository, m.Digest); err != nil {
			return fmt.Errorf("%w %s@%s: %w", ErrDeleteFailed, m.Repository, m.Digest, err)
		}
	}

	p.logger.Info("done deleting manifests")
	return nil
}

// DeleteUnpatched deletes the untagged versions of the images listed in the
// patch at patchDir.
func (p *Patcher) DeleteUnpatched(ctx context.Context, patchDir string) error {
	dir, err := filepath.Abs(patchDir)
	if err != nil {
		return err
	}
	decl, err := LoadDeclaration(dir)
	if err != nil {
		return err
	}
	if len(decl.ImageIDs) == 0 {
		p.logger.Warn("patch does not include image IDs, nothing to do", "patch", dir)
		return nil
	}
	return p.DeleteUntagged(ctx, decl.ImageIDs)
}
