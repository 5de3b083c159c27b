package packages

import (
	"context"

	"github.com/google/go-github/v62/github"
	"github.com/xeonx/timeago"
	"golang.org/x/sync/errgroup"
)

type versionRef struct {
	pkg *github.Package
	id  int64
}

// Find walks every package, every version and every version's metadata, and
// returns the manifests whose digest satisfies match. Calls fan out up to the
// configured concurrency; the result keeps package then version order. An
// empty result is not an error.
func (c *Client) Find(ctx context.Context, match func(digest string) bool) ([]Manifest, error) {
	c.logger.Info("getting repository list")
	pkgs, err := c.Packages(ctx)
	if err != nil {
		return nil, err
	}

	// List versions first so the second stage never waits on a slot held by
	// its own parent.
	versions := make([][]*github.PackageVersion, len(pkgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, pkg := range pkgs {
		g.Go(func() error {
			c.logger.Info("checking package", "package", pkg.GetName())
			vs, err := c.Versions(gctx, pkg.GetName())
			if err != nil {
				return err
			}
			versions[i] = vs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var refs []versionRef
	for i, pkg := range pkgs {
		for _, v := range versions[i] {
			refs = append(refs, versionRef{pkg: pkg, id: v.GetID()})
		}
	}

	found := make([]*Manifest, len(refs))
	vg, vctx := errgroup.WithContext(ctx)
	vg.SetLimit(c.concurrency)
	for i, ref := range refs {
		vg.Go(func() error {
			v, err := c.Version(vctx, ref.pkg.GetName(), ref.id)
			if err != nil {
				return err
			}
			digest := v.GetName()
			c.logger.Debug("inspected version",
				"package", ref.pkg.GetName(),
				"digest", digest,
				"updated", timeago.English.Format(v.GetUpdatedAt().Time))
			if !match(digest) {
				return nil
			}
			found[i] = &Manifest{
				Repository: repositoryOf(ref.pkg),
				Digest:     digest,
				Tags:       tagsOf(v),
			}
			return nil
		})
	}
	if err := vg.Wait(); err != nil {
		return nil, err
	}

	manifests := []Manifest{}
	for _, m := range found {
		if m != nil {
			manifests = append(manifests, *m)
		}
	}
	return manifests, nil
}

// MatchDigest matches exactly one digest.
func MatchDigest(digest string) func(string) bool {
	return func(d string) bool {
		return d == digest
	}
}

// MatchAny matches any of the given digests.
func MatchAny(digests []string) func(string) bool {
	set := make(map[string]struct{}, len(digests))
	for _, d := range digests {
		set[d] = struct{}{}
	}
	return func(d string) bool {
		_, ok := set[d]
		return ok
	}
}
