package pep440

import "testing"

func TestSpecifierSetContains(t *testing.T) {
	tests := []struct {
		spec    string
		version string
		want    bool
	}{
		{">=3.8", "3.8", true},
		{">=3.8", "3.12.1", true},
		{">=3.8", "3.7.9", false},
		{">=3.8,<4", "3.11", true},
		{">=3.8,<4", "4.0", false},
		{"~=2.2", "2.3", true},
		{"~=2.2", "3.0", false},
		{"~=1.4.5", "1.4.9", true},
		{"~=1.4.5", "1.5.0", false},
		{"==1.2.*", "1.2.7", true},
		{"==1.2.*", "1.3", false},
		{"!=1.2.*", "1.3", true},
		{"==1.0", "1.0+local.1", true},
		{"==1.0+local.1", "1.0", false},
		{"!=1.0", "1.0.0", false},
		{"<2.0", "2.0rc1", false},
		{"<2.0", "1.9", true},
		{">1.0", "1.0.post1", false},
		{">1.0", "1.1", true},
		{">1.0.post1", "1.0.post2", true},
		{"<=1.0", "1.0+abc", true},
		{"===1.0", "1.0", true},
		{"*", "0.0.1", true},
		{"", "7", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec+" "+tt.version, func(t *testing.T) {
			set, err := ParseSpecifierSet(tt.spec)
			if err != nil {
				t.Fatalf("ParseSpecifierSet(%q) failed: %v", tt.spec, err)
			}
			if got := set.Contains(MustParse(tt.version), false); got != tt.want {
				t.Errorf("%q contains %q = %v, want %v", tt.spec, tt.version, got, tt.want)
			}
		})
	}
}

func TestSpecifierPrereleases(t *testing.T) {
	set, err := ParseSpecifierSet(">=1.0")
	if err != nil {
		t.Fatal(err)
	}
	if set.Contains(MustParse("2.0b1"), false) {
		t.Error("pre-release should be excluded by default")
	}
	if !set.Contains(MustParse("2.0b1"), true) {
		t.Error("pre-release should match when allowed")
	}

	explicit, err := ParseSpecifierSet(">=2.0b1")
	if err != nil {
		t.Fatal(err)
	}
	if !explicit.Contains(MustParse("2.0b2"), false) {
		t.Error("a set naming a pre-release should admit pre-releases")
	}
}

func TestParseSpecifierInvalid(t *testing.T) {
	invalid := []string{
		"1.0",
		">=",
		">=1.*",
		"~=1",
		"==1.0a1.*",
		">=1.0+local",
		"==not-a-version",
		">=3.8,",
	}
	for _, s := range invalid {
		if _, err := ParseSpecifierSet(s); err == nil {
			t.Errorf("ParseSpecifierSet(%q) expected error", s)
		}
	}
}

func TestSpecifierString(t *testing.T) {
	set, err := ParseSpecifierSet(" >= 3.08 , != 3.9.* ")
	if err != nil {
		t.Fatal(err)
	}
	if got := set.String(); got != ">=3.8,!=3.9.*" {
		t.Errorf("String() = %q", got)
	}
}
