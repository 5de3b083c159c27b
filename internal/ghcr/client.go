// Package ghcr talks to the registry's manifest API: reading a manifest
// descriptor and deleting a manifest by repository and digest.
package ghcr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

// Host is the only registry the patcher knows how to manage.
const Host = "ghcr.io"

var ErrManifestNotFound = errors.New("manifest not found")

type Client struct {
	registry name.Registry
	nameOpts []name.Option
	auth     authn.Authenticator
}

type Option func(*Client)

// WithInsecure allows plain HTTP, for local registries.
func WithInsecure() Option {
	return func(c *Client) {
		c.nameOpts = append(c.nameOpts, name.Insecure)
	}
}

// New returns a client for host authenticated with token. ghcr.io accepts the
// base64 encoded token directly as a bearer registry token.
func New(host, token string, opts ...Option) (*Client, error) {
	c := &Client{
		auth: authn.FromConfig(authn.AuthConfig{
			RegistryToken: base64.StdEncoding.EncodeToString([]byte(token)),
		}),
	}
	for _, opt := range opts {
		opt(c)
	}

	reg, err := name.NewRegistry(host, c.nameOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid registry %q: %w", host, err)
	}
	c.registry = reg
	return c, nil
}

// Reference returns registry/repository@digest.
func (c *Client) Reference(repository, digest string) (name.Digest, error) {
	ref, err := name.NewDigest(fmt.Sprintf("%s/%s@%s", c.registry.Name(), repository, digest), c.nameOpts...)
	if err != nil {
		return name.Digest{}, fmt.Errorf("invalid manifest reference %s@%s: %w", repository, digest, err)
	}
	return ref, nil
}

// Head fetches the descriptor of repository@digest without the body. A
// manifest the registry does not have yields ErrManifestNotFound.
func (c *Client) Head(ctx context.Context, repository, digest string) (*v1.Descriptor, error) {
	ref, err := c.Reference(repository, digest)
	if err != nil {
		return nil, err
	}
	desc, err := remote.Head(ref, c.remoteOptions(ctx)...)
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", ref, err)
	}
	return desc, nil
}

// Delete removes the manifest repository@digest from the registry.
func (c *Client) Delete(ctx context.Context, repository, digest string) error {
	ref, err := c.Reference(repository, digest)
	if err != nil {
		return err
	}
	if err := remote.Delete(ref, c.remoteOptions(ctx)...); err != nil {
		return fmt.Errorf("failed to delete manifest %s: %w", ref, err)
	}
	return nil
}

func (c *Client) remoteOptions(ctx context.Context) []remote.Option {
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuth(c.auth),
	}
}
