package core

import (
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL returns the package URL that identifies the distribution built from
// the descriptor, e.g. "pkg:pypi/cms-tfaot@0.1.0".
func (d *Descriptor) PURL() string {
	name := d.NormalizedName
	if name == "" {
		name = NormalizeName(d.Name)
	}
	p := packageurl.NewPackageURL(packageurl.TypePyPi, "", name, d.Version, nil, "")
	return p.ToString()
}

// DistName returns the file name stem used for distribution archives,
// e.g. "cms_tfaot-0.1.0".
func (d *Descriptor) DistName() string {
	return strings.ReplaceAll(NormalizeName(d.Name), "-", "_") + "-" + d.Version
}
