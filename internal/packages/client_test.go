package packages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abgoyal/image-patcher/internal/logging"
)

type fakeVersion struct {
	ID     int64
	Digest string
	Tags   []string
}

// fakeAPI serves the user packages endpoints. Packages and versions are split
// over two pages to exercise pagination.
type fakeAPI struct {
	owner    string
	packages []string
	versions map[string][]fakeVersion
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "user" && parts[1] == "packages":
		if r.URL.Query().Get("package_type") != "container" {
			http.Error(w, "bad package type", http.StatusBadRequest)
			return
		}
		pkgs := f.packages
		if len(pkgs) > 1 {
			half := len(pkgs) / 2
			if r.URL.Query().Get("page") == "2" {
				pkgs = pkgs[half:]
			} else {
				pkgs = pkgs[:half]
				w.Header().Set("Link", fmt.Sprintf(`<http://%s/user/packages?package_type=container&page=2>; rel="next"`, r.Host))
			}
		}
		var out []map[string]any
		for _, p := range pkgs {
			out = append(out, map[string]any{"name": p, "owner": map[string]any{"login": f.owner}})
		}
		_ = json.NewEncoder(w).Encode(out)

	case len(parts) == 5 && parts[4] == "versions":
		versions := f.versions[parts[3]]
		if len(versions) > 1 {
			half := len(versions) / 2
			if r.URL.Query().Get("page") == "2" {
				versions = versions[half:]
			} else {
				versions = versions[:half]
				w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?page=2>; rel="next"`, r.Host, r.URL.Path))
			}
		}
		out := []map[string]any{}
		for _, v := range versions {
			out = append(out, map[string]any{"id": v.ID})
		}
		_ = json.NewEncoder(w).Encode(out)

	case len(parts) == 6 && parts[4] == "versions":
		for _, v := range f.versions[parts[3]] {
			if fmt.Sprint(v.ID) == parts[5] {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id":         v.ID,
					"name":       v.Digest,
					"updated_at": "2024-05-01T10:00:00Z",
					"metadata": map[string]any{
						"package_type": "container",
						"container":    map[string]any{"tags": v.Tags},
					},
				})
				return
			}
		}
		http.NotFound(w, r)

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	return New(server.Client(),
		WithLogger(logging.Discard()),
		WithBaseURL(server.URL),
		WithConcurrency(2),
	)
}

func sampleAPI() *fakeAPI {
	return &fakeAPI{
		owner:    "org",
		packages: []string{"img", "other", "tools"},
		versions: map[string][]fakeVersion{
			"img": {
				{ID: 1, Digest: "sha256:abc", Tags: []string{"1.0.0-beta", "beta"}},
				{ID: 2, Digest: "sha256:def", Tags: []string{"0.9.0-beta"}},
			},
			"other": {
				{ID: 3, Digest: "sha256:abc", Tags: nil},
			},
			"tools": {
				{ID: 4, Digest: "sha256:123", Tags: []string{"latest"}},
			},
		},
	}
}

func TestPackagesFollowsPagination(t *testing.T) {
	c := newTestClient(t, sampleAPI())

	pkgs, err := c.Packages(context.Background())
	require.NoError(t, err)

	var names []string
	for _, p := range pkgs {
		names = append(names, p.GetName())
	}
	assert.Equal(t, []string{"img", "other", "tools"}, names)
}

func TestVersionsFollowsPagination(t *testing.T) {
	api := sampleAPI()
	api.versions["img"] = append(api.versions["img"], fakeVersion{ID: 5, Digest: "sha256:456"})
	c := newTestClient(t, api)

	versions, err := c.Versions(context.Background(), "img")
	require.NoError(t, err)

	var ids []int64
	for _, v := range versions {
		ids = append(ids, v.GetID())
	}
	assert.Equal(t, []int64{1, 2, 5}, ids)
}

func TestFindMatchesVersionsOnLaterPages(t *testing.T) {
	api := sampleAPI()
	api.versions["img"] = append(api.versions["img"], fakeVersion{ID: 5, Digest: "sha256:456", Tags: []string{"2.0.0"}})
	c := newTestClient(t, api)

	got, err := c.Find(context.Background(), MatchDigest("sha256:456"))
	require.NoError(t, err)
	assert.Equal(t, []Manifest{
		{Repository: "org/img", Digest: "sha256:456", Tags: []string{"2.0.0"}},
	}, got)
}

func TestFindMatchDigest(t *testing.T) {
	c := newTestClient(t, sampleAPI())

	got, err := c.Find(context.Background(), MatchDigest("sha256:abc"))
	require.NoError(t, err)

	assert.Equal(t, []Manifest{
		{Repository: "org/img", Digest: "sha256:abc", Tags: []string{"1.0.0-beta", "beta"}},
		{Repository: "org/other", Digest: "sha256:abc"},
	}, got)
}

func TestFindMatchAny(t *testing.T) {
	c := newTestClient(t, sampleAPI())

	got, err := c.Find(context.Background(), MatchAny([]string{"sha256:def", "sha256:123"}))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "org/img", got[0].Repository)
	assert.Equal(t, "sha256:def", got[0].Digest)
	assert.Equal(t, "org/tools", got[1].Repository)
}

func TestFindNoMatchIsEmpty(t *testing.T) {
	c := newTestClient(t, sampleAPI())

	got, err := c.Find(context.Background(), MatchDigest("sha256:missing"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindPropagatesAPIErrors(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	c := newTestClient(t, api)

	_, err := c.Find(context.Background(), MatchDigest("sha256:abc"))
	assert.Error(t, err)
}
