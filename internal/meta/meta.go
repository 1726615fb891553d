// Package meta holds the version of the tfaot tools.
package meta

import "github.com/blang/semver"

// version is the single source of truth for the tool version.
const version = "0.1.0"

// Version returns the tool version.
func Version() semver.Version {
	return semver.MustParse(version)
}

// UserAgent is sent with every request to a package index.
func UserAgent() string {
	return "cms-tfaot/" + version
}
