package tfaot_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/tfaot"
	"github.com/git-pkgs/tfaot/index"
)

var numpyResponse = []byte(`{
  "info": {"name": "numpy", "version": "1.26.4"},
  "releases": {
    "1.24.0": [{"digests": {"sha256": "a"}, "upload_time": "2022-12-18T00:00:00"}],
    "1.25.0": [{"digests": {"sha256": "b"}, "upload_time": "2023-06-17T00:00:00"}],
    "1.26.4": [{"digests": {"sha256": "c"}, "upload_time": "2024-02-05T00:00:00"}],
    "2.0.0rc1": [{"digests": {"sha256": "d"}, "upload_time": "2024-03-30T00:00:00"}]
  }
}`)

func BenchmarkResolveDir(b *testing.B) {
	fs := project(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tfaot.ResolveDir(ctx, fs, "/proj")
	}
}

func BenchmarkBuildURLs(b *testing.B) {
	urls := &tfaot.IndexURLs{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tfaot.BuildURLs(urls, "cms-tfaot", "0.1.0")
	}
}

func BenchmarkCheck(b *testing.B) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(numpyResponse)
	}))
	defer server.Close()

	c := index.New(server.URL, nil)
	dep := tfaot.Dependency{Name: "numpy", Requirements: ">=1.25,<2"}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Check(ctx, dep)
	}
}
