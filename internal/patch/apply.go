package patch

import (
	"context"
	"path/filepath"
)

// Apply runs the patch located at patchDir: every declared image is rebuilt,
// then untagged versions are deleted when the declaration asks for it.
func (p *Patcher) Apply(ctx context.Context, patchDir string) error {
	dir, err := filepath.Abs(patchDir)
	if err != nil {
		return err
	}
	decl, err := LoadDeclaration(dir)
	if err != nil {
		return err
	}

	p.logger.Info("applying patch", "patch", dir)
	dockerFile := decl.DockerFilePath(dir)
	for _, imageID := range decl.ImageIDs {
		if err := p.PatchImage(ctx, imageID, dir, dockerFile, decl.BumpVersion); err != nil {
			return err
		}
	}

	if decl.DeleteUntaggedImages && len(decl.ImageIDs) > 0 {
		if err := p.DeleteUntagged(ctx, decl.ImageIDs); err != nil {
			return err
		}
	}

	p.logger.Info("done", "patch", dir)
	return nil
}
