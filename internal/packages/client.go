// Package packages enumerates the container packages owned by the
// authenticated GitHub user and resolves their versions to manifests.
package packages

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

const (
	containerType = "container"
	perPage       = 100
)

// Manifest is one package version: its repository, digest and current tags.
type Manifest struct {
	Repository string   `json:"repository"`
	Digest     string   `json:"digest"`
	Tags       []string `json:"tags"`
}

type Client struct {
	gh          *github.Client
	concurrency int
	logger      *log.Logger
}

type Option func(*Client)

// WithConcurrency bounds the number of in-flight API calls during Find.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBaseURL points the client at another API root, such as a GitHub
// Enterprise server.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		u, err := url.Parse(raw)
		if err != nil {
			c.logger.Warn("ignoring invalid API base URL", "url", raw, "err", err)
			return
		}
		if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
			u.Path += "/"
		}
		c.gh.BaseURL = u
	}
}

// New wraps httpClient, which is expected to carry authentication.
func New(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		gh:          github.NewClient(httpClient),
		concurrency: 8,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithToken returns a client authenticated with a static bearer token.
func NewWithToken(ctx context.Context, token string, opts ...Option) *Client {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return New(httpClient, opts...)
}

// Packages lists every container package of the authenticated user.
func (c *Client) Packages(ctx context.Context) ([]*github.Package, error) {
	opts := &github.PackageListOptions{
		PackageType: github.String(containerType),
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []*github.Package
	for {
		page, resp, err := c.gh.Users.ListPackages(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list packages: %w", err)
		}
		all = append(all, page...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// Versions lists every version of the named container package.
func (c *Client) Versions(ctx context.Context, pkg string) ([]*github.PackageVersion, error) {
	opts := &github.PackageListOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []*github.PackageVersion
	for {
		page, resp, err := c.gh.Users.PackageGetAllVersions(ctx, "", containerType, pkg, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions of %s: %w", pkg, err)
		}
		all = append(all, page...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// Version fetches one package version with its container metadata.
func (c *Client) Version(ctx context.Context, pkg string, id int64) (*github.PackageVersion, error) {
	v, _, err := c.gh.Users.PackageGetVersion(ctx, "", containerType, pkg, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get version %d of %s: %w", id, pkg, err)
	}
	return v, nil
}

func repositoryOf(pkg *github.Package) string {
	return pkg.GetOwner().GetLogin() + "/" + pkg.GetName()
}

func tagsOf(v *github.PackageVersion) []string {
	md := v.GetMetadata()
	if md == nil || md.Container == nil {
		return nil
	}
	return md.Container.Tags
}
