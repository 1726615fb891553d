package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/tfaot/internal/core"
)

const numpyJSON = `{
  "info": {"name": "numpy", "version": "2.0.0"},
  "releases": {
    "1.0": [{"digests": {"sha256": "aaa"}, "upload_time": "2020-01-02T03:04:05", "yanked": false}],
    "1.5": [{"digests": {"sha256": "bbb"}, "yanked": true, "yanked_reason": "broken wheel"}],
    "1.6": [],
    "2.0.0": [{"digests": {"sha256": "ccc"}}, {"digests": {"sha256": "ddd"}, "yanked": true}],
    "3.0rc1": [{"digests": {"sha256": "eee"}}],
    "not a version": [{"digests": {}}]
  }
}`

func newIndex(t *testing.T) (*Client, *int64) {
	t.Helper()
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		switch r.URL.Path {
		case "/pypi/numpy/json":
			w.Header().Set("Content-Type", "application/json")
			if r.Method != http.MethodHead {
				_, _ = w.Write([]byte(numpyJSON))
			}
		case "/pypi/broken/json":
			_, _ = w.Write([]byte("{not json"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return New(server.URL, NewFetcher(WithMaxRetries(0))), &requests
}

func TestFetchVersions(t *testing.T) {
	c, _ := newIndex(t)

	versions, err := c.FetchVersions(context.Background(), "NumPy")
	require.NoError(t, err)

	var numbers []string
	for _, v := range versions {
		numbers = append(numbers, v.Number)
	}
	assert.Equal(t, []string{"1.0", "1.5", "1.6", "2.0.0", "3.0rc1"}, numbers)

	assert.Equal(t, "sha256-aaa", versions[0].Integrity)
	assert.Equal(t, 2020, versions[0].PublishedAt.Year())
	assert.Equal(t, core.StatusYanked, versions[1].Status)
	assert.Equal(t, "broken wheel", versions[1].Metadata["yanked_reason"])
	assert.Equal(t, core.StatusNone, versions[3].Status, "a release with one live file is not yanked")
}

func TestFetchVersionsErrors(t *testing.T) {
	c, _ := newIndex(t)

	_, err := c.FetchVersions(context.Background(), "nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Name)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.FetchVersions(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestExists(t *testing.T) {
	c, _ := newIndex(t)

	ok, err := c.Exists(context.Background(), "numpy")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func mustDep(t *testing.T, req string) core.Dependency {
	t.Helper()
	dep, err := core.ParseRequirement(req)
	require.NoError(t, err)
	return dep
}

func TestCheck(t *testing.T) {
	c, _ := newIndex(t)

	tests := []struct {
		req     string
		version string
		wantErr error
	}{
		{"numpy>=1.0", "2.0.0", nil},
		{"numpy<2", "1.0", nil},
		{"numpy>=1.5,<2", "", ErrNoMatchingRelease},
		{"numpy>=3.0.dev0", "3.0rc1", nil},
		{"numpy>2.0.0", "3.0rc1", nil},
		{"numpy==1.*", "1.0", nil},
		{"numpy>=4", "", ErrNoMatchingRelease},
		{"nope>=1.0", "", ErrNotFound},
		{"numpy", "", nil},
		{"nope", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			res := c.Check(context.Background(), mustDep(t, tt.req))
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
				return
			}
			require.NoError(t, res.Err)
			assert.Equal(t, tt.version, res.Version)
			assert.False(t, res.Skipped)
		})
	}
}

func TestCheckDirectReference(t *testing.T) {
	c, requests := newIndex(t)

	res := c.Check(context.Background(), mustDep(t, "tool @ https://example.com/tool-1.0.tar.gz"))
	assert.True(t, res.Skipped)
	assert.NoError(t, res.Err)
	assert.Zero(t, atomic.LoadInt64(requests), "direct references must not hit the index")
}

func TestCheckBadSpecifier(t *testing.T) {
	c, _ := newIndex(t)

	res := c.Check(context.Background(), core.Dependency{Name: "numpy", Requirements: ">=1.*"})
	require.Error(t, res.Err)
	assert.True(t, strings.HasPrefix(res.Err.Error(), "numpy: "))
}

func TestVerify(t *testing.T) {
	c, _ := newIndex(t)

	deps := []core.Dependency{
		mustDep(t, "numpy>=1.0"),
		mustDep(t, "nope"),
		mustDep(t, "numpy>=4"),
		mustDep(t, "tool @ https://example.com/tool.tar.gz"),
	}
	results, err := c.Verify(context.Background(), deps, 2)
	require.Error(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "2.0.0", results[0].Version)
	assert.ErrorIs(t, results[1].Err, ErrNotFound)
	assert.ErrorIs(t, results[2].Err, ErrNoMatchingRelease)
	assert.True(t, results[3].Skipped)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrNoMatchingRelease)
	assert.Equal(t, 2, strings.Count(err.Error(), "\n\t* "))
}

func TestVerifyAllSatisfied(t *testing.T) {
	c, _ := newIndex(t)

	results, err := c.Verify(context.Background(), []core.Dependency{mustDep(t, "numpy~=1.0")}, 0)
	require.NoError(t, err)
	assert.Equal(t, "1.0", results[0].Version)
}

func TestVerifyCancelled(t *testing.T) {
	c, _ := newIndex(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Verify(ctx, []core.Dependency{mustDep(t, "numpy>=1.0")}, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}
