// Package client builds the URLs under which a distribution is published on
// a Python package index.
package client

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/tfaot/internal/core"
)

const (
	DefaultIndexURL = "https://pypi.org"
	DefaultFilesURL = "https://files.pythonhosted.org"
)

// URLBuilder constructs URLs for a package on an index.
type URLBuilder interface {
	Project(name, version string) string
	JSON(name, version string) string
	Download(name, version string) string
	PURL(name, version string) string
}

// IndexURLs builds pypi.org style URLs. Empty fields fall back to the
// public index.
type IndexURLs struct {
	BaseURL  string
	FilesURL string
}

// NewIndexURLs returns a builder rooted at baseURL.
func NewIndexURLs(baseURL string) *IndexURLs {
	return &IndexURLs{BaseURL: baseURL}
}

func (u *IndexURLs) base() string {
	if u.BaseURL == "" {
		return DefaultIndexURL
	}
	return strings.TrimSuffix(u.BaseURL, "/")
}

func (u *IndexURLs) files() string {
	if u.FilesURL == "" {
		return DefaultFilesURL
	}
	return strings.TrimSuffix(u.FilesURL, "/")
}

// Project returns the human readable project page.
func (u *IndexURLs) Project(name, version string) string {
	name = core.NormalizeName(name)
	if version != "" {
		return fmt.Sprintf("%s/project/%s/%s/", u.base(), name, version)
	}
	return fmt.Sprintf("%s/project/%s/", u.base(), name)
}

// JSON returns the JSON API document for the project or one release.
func (u *IndexURLs) JSON(name, version string) string {
	name = core.NormalizeName(name)
	if version != "" {
		return fmt.Sprintf("%s/pypi/%s/%s/json", u.base(), name, version)
	}
	return fmt.Sprintf("%s/pypi/%s/json", u.base(), name)
}

// Download returns the conventional source distribution location. It is
// empty without a version.
func (u *IndexURLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	stem := strings.ReplaceAll(core.NormalizeName(name), "-", "_")
	return fmt.Sprintf("%s/packages/source/%c/%s/%s-%s.tar.gz", u.files(), stem[0], stem, stem, version)
}

// PURL returns the package URL.
func (u *IndexURLs) PURL(name, version string) string {
	d := core.Descriptor{Name: name, Version: version}
	return d.PURL()
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "project", "json", "download", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Project(name, version); v != "" {
		result["project"] = v
	}
	if v := urls.JSON(name, version); v != "" {
		result["json"] = v
	}
	if v := urls.Download(name, version); v != "" {
		result["download"] = v
	}
	if v := urls.PURL(name, version); v != "" {
		result["purl"] = v
	}
	return result
}
