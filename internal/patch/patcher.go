// Package patch rebuilds published images on top of an updated base: it
// resolves the tags pointing at an image, rebuilds and pushes them, cleans up
// untagged versions and runs whole patch directories as a resumable batch.
package patch

import (
	"context"

	"github.com/charmbracelet/log"
	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/abgoyal/image-patcher/internal/builder"
	"github.com/abgoyal/image-patcher/internal/packages"
)

// PackageFinder enumerates package versions whose digest satisfies match.
type PackageFinder interface {
	Find(ctx context.Context, match func(digest string) bool) ([]packages.Manifest, error)
}

// ManifestStore reads and removes repository@digest in the registry. Head
// reports a manifest the registry does not hold with ghcr.ErrManifestNotFound.
type ManifestStore interface {
	Head(ctx context.Context, repository, digest string) (*v1.Descriptor, error)
	Delete(ctx context.Context, repository, digest string) error
}

type Builder interface {
	Build(ctx context.Context, opts builder.BuildOptions) error
	Push(ctx context.Context, ref string) error
	Prune(ctx context.Context, all bool) error
}

type Options struct {
	Registry  string
	Packages  PackageFinder
	Manifests ManifestStore
	Builder   Builder
	Logger    *log.Logger
}

type Patcher struct {
	registry  string
	packages  PackageFinder
	manifests ManifestStore
	builder   Builder
	logger    *log.Logger
}

func New(opts Options) *Patcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Patcher{
		registry:  opts.Registry,
		packages:  opts.Packages,
		manifests: opts.Manifests,
		builder:   opts.Builder,
		logger:    logger,
	}
}

func (p *Patcher) Logger() *log.Logger {
	return p.logger
}
