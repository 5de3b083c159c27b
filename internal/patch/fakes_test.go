package patch

import (
	"context"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/stretchr/testify/mock"

	"github.com/abgoyal/image-patcher/internal/builder"
	"github.com/abgoyal/image-patcher/internal/logging"
	"github.com/abgoyal/image-patcher/internal/packages"
)

// fakeFinder filters a fixed version list with the caller's predicate.
type fakeFinder struct {
	manifests []packages.Manifest
	err       error
	calls     int
}

func (f *fakeFinder) Find(_ context.Context, match func(string) bool) ([]packages.Manifest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := []packages.Manifest{}
	for _, m := range f.manifests {
		if match(m.Digest) {
			out = append(out, m)
		}
	}
	return out, nil
}

type mockBuilder struct {
	mock.Mock
}

func (m *mockBuilder) Build(_ context.Context, opts builder.BuildOptions) error {
	return m.Called(opts).Error(0)
}

func (m *mockBuilder) Push(_ context.Context, ref string) error {
	return m.Called(ref).Error(0)
}

func (m *mockBuilder) Prune(_ context.Context, all bool) error {
	return m.Called(all).Error(0)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Head(_ context.Context, repository, digest string) (*v1.Descriptor, error) {
	args := m.Called(repository, digest)
	desc, _ := args.Get(0).(*v1.Descriptor)
	return desc, args.Error(1)
}

func (m *mockStore) Delete(_ context.Context, repository, digest string) error {
	return m.Called(repository, digest).Error(0)
}

func newTestPatcher(finder PackageFinder, b Builder, d ManifestStore) *Patcher {
	return New(Options{
		Registry:  "ghcr.io",
		Packages:  finder,
		Manifests: d,
		Builder:   b,
		Logger:    logging.Discard(),
	})
}
