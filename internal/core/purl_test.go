package core

import (
	"testing"
)

func TestDescriptorPURL(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"cms_tfaot", "0.1.0", "pkg:pypi/cms-tfaot@0.1.0"},
		{"CMS.TFAOT", "1.2.3", "pkg:pypi/cms-tfaot@1.2.3"},
		{"numpy", "", "pkg:pypi/numpy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Descriptor{Name: tt.name, Version: tt.version}
			if got := d.PURL(); got != tt.want {
				t.Errorf("PURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescriptorDistName(t *testing.T) {
	d := &Descriptor{Name: "CMS-TFAOT", Version: "0.1.0"}
	if got := d.DistName(); got != "cms_tfaot-0.1.0" {
		t.Errorf("DistName() = %q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"cms_tfaot", "cms-tfaot"},
		{"Friendly-Bard", "friendly-bard"},
		{"FRIENDLY.._BARD", "friendly-bard"},
		{"numpy", "numpy"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"cms_tfaot", "a", "A1", "foo.bar-baz_1"}
	invalid := []string{"", "-foo", "foo-", "foo bar", "foo/bar"}

	for _, n := range valid {
		if !ValidName(n) {
			t.Errorf("ValidName(%q) = false, want true", n)
		}
	}
	for _, n := range invalid {
		if ValidName(n) {
			t.Errorf("ValidName(%q) = true, want false", n)
		}
	}
}
