package patch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abgoyal/image-patcher/internal/builder"
)

// PatchImage rebuilds every tag currently pointing at imageID from
// dockerFilePath, pushes the results and prunes dangling images. With bump set
// the breakfix number of each version tag is incremented first.
func (p *Patcher) PatchImage(ctx context.Context, imageID, patchDir, dockerFilePath string, bump bool) error {
	p.logger.Info("updating image", "image", imageID)

	tags, err := p.ResolveTags(ctx, imageID)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		p.logger.Info("no tags to patch, skipping", "image", imageID)
		return nil
	}
	p.logger.Info("tags to update", "tags", joinTags(tags))

	if bump {
		tags = BumpVersions(tags)
	}

	refs := make([]string, len(tags))
	for i, rt := range tags {
		refs[i] = p.registry + "/" + rt.String()
	}

	opts := builder.BuildOptions{
		ContextDir: patchDir,
		DockerFile: dockerFilePath,
		BuildArgs:  []string{fmt.Sprintf("ORIGINAL_IMAGE=%s/%s@%s", p.registry, tags[0].Repository, imageID)},
		Tags:       refs,
		Pull:       true,
	}
	if err := p.build(ctx, opts); err != nil {
		return err
	}

	for _, ref := range refs {
		if err := p.builder.Push(ctx, ref); err != nil {
			return err
		}
	}

	p.logger.Info("pruning dangling images")
	if err := p.builder.Prune(ctx, false); err != nil {
		p.logger.Warn("failed to prune dangling images", "err", err)
	}
	return nil
}

// build retries once, after pruning all unused images, when the build ran
// out of disk space.
func (p *Patcher) build(ctx context.Context, opts builder.BuildOptions) error {
	err := p.builder.Build(ctx, opts)
	if err == nil || !errors.Is(err, builder.ErrNoSpace) {
		return err
	}

	p.logger.Warn("out of space, pruning all unused images")
	if err := p.builder.Prune(ctx, true); err != nil {
		return err
	}
	p.logger.Info("retrying build")
	return p.builder.Build(ctx, opts)
}

func joinTags(tags []RepoTag) string {
	s := make([]string, len(tags))
	for i, rt := range tags {
		s[i] = rt.String()
	}
	return strings.Join(s, " ")
}
