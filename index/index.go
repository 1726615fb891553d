package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang/glog"

	"github.com/git-pkgs/tfaot/client"
	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/internal/pep440"
)

// NotFoundError is returned when a project does not exist on the index.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: project not found on index", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Client reads release listings from a PyPI compatible JSON API.
type Client struct {
	urls      *client.IndexURLs
	transport Transport
}

// New returns a Client for the index at baseURL. A nil transport gets a
// default Fetcher behind a BreakerTransport.
func New(baseURL string, t Transport) *Client {
	if t == nil {
		t = NewBreakerTransport(NewFetcher())
	}
	return &Client{urls: client.NewIndexURLs(baseURL), transport: t}
}

// URLs returns the URL builder for this index.
func (c *Client) URLs() client.URLBuilder {
	return c.urls
}

type projectResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type releaseFile struct {
	Digests        map[string]string `json:"digests"`
	URL            string            `json:"url"`
	UploadTime     string            `json:"upload_time"`
	Yanked         bool              `json:"yanked"`
	YankedReason   string            `json:"yanked_reason"`
	PackageType    string            `json:"packagetype"`
	RequiresPython string            `json:"requires_python"`
	Size           int               `json:"size"`
}

// FetchVersions returns every release of name sorted oldest first. Releases
// whose number is not a valid version are skipped. A release is yanked when
// all of its files are.
func (c *Client) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	url := c.urls.JSON(name, "")
	body, err := c.transport.GetJSON(ctx, url)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, err
	}

	var resp projectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}

	versions := make([]core.Version, 0, len(resp.Releases))
	for num, files := range resp.Releases {
		if !pep440.Valid(num) {
			glog.V(2).Infof("%s: skipping release %q, not a valid version", name, num)
			continue
		}
		v := core.Version{
			Number:   num,
			Metadata: map[string]any{"files": len(files)},
		}
		if len(files) > 0 {
			file := files[0]
			if file.UploadTime != "" {
				v.PublishedAt, _ = time.Parse("2006-01-02T15:04:05", file.UploadTime)
			}
			if sha256, ok := file.Digests["sha256"]; ok {
				v.Integrity = "sha256-" + sha256
			}
			v.Metadata["requires_python"] = file.RequiresPython
			v.Metadata["yanked_reason"] = file.YankedReason
			if allYanked(files) {
				v.Status = core.StatusYanked
			}
		}
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool {
		return pep440.MustParse(versions[i].Number).LessThan(pep440.MustParse(versions[j].Number))
	})
	return versions, nil
}

// Exists reports whether the index knows name.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	err := c.transport.Probe(ctx, c.urls.JSON(name, ""))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func allYanked(files []releaseFile) bool {
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return true
}
