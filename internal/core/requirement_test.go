package core

import (
	"strings"
	"testing"
)

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		input      string
		wantName   string
		wantReq    string
		wantExtras []string
		wantMarker string
		wantString string
	}{
		{"numpy>=1.0", "numpy", ">=1.0", nil, "", "numpy>=1.0"},
		{"numpy >= 1.0, < 2", "numpy", ">=1.0,<2", nil, "", "numpy>=1.0,<2"},
		{"requests", "requests", "*", nil, "", "requests"},
		{"requests (>=2.0)", "requests", ">=2.0", nil, "", "requests>=2.0"},
		{"cmsml[tf] ~=0.2", "cmsml", "~=0.2", []string{"tf"}, "", "cmsml[tf]~=0.2"},
		{`pyyaml; python_version < "3.8"`, "pyyaml", "*", nil, `python_version < "3.8"`, `pyyaml; python_version < "3.8"`},
		{"pkg[a, b]==1", "pkg", "==1", []string{"a", "b"}, "", "pkg[a,b]==1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			dep, err := ParseRequirement(tt.input)
			if err != nil {
				t.Fatalf("ParseRequirement(%q) failed: %v", tt.input, err)
			}
			if dep.Name != tt.wantName {
				t.Errorf("name = %q, want %q", dep.Name, tt.wantName)
			}
			if dep.Requirements != tt.wantReq {
				t.Errorf("requirements = %q, want %q", dep.Requirements, tt.wantReq)
			}
			if strings.Join(dep.Extras, ",") != strings.Join(tt.wantExtras, ",") {
				t.Errorf("extras = %v, want %v", dep.Extras, tt.wantExtras)
			}
			if dep.Marker != tt.wantMarker {
				t.Errorf("marker = %q, want %q", dep.Marker, tt.wantMarker)
			}
			if got := dep.String(); got != tt.wantString {
				t.Errorf("String() = %q, want %q", got, tt.wantString)
			}
		})
	}
}

func TestParseRequirementInvalid(t *testing.T) {
	if _, err := ParseRequirement(">=1.0"); err == nil {
		t.Error("expected error for requirement without a name")
	}
}

func TestParseRequirements(t *testing.T) {
	input := `
# runtime requirements
numpy>=1.0
pyyaml   # config files

	cmsml[tf] ~= 0.2
`
	deps, err := ParseRequirements(strings.NewReader(input), Runtime)
	if err != nil {
		t.Fatalf("ParseRequirements failed: %v", err)
	}

	want := []string{"numpy>=1.0", "pyyaml", "cmsml[tf]~=0.2"}
	if len(deps) != len(want) {
		t.Fatalf("expected %d deps, got %d: %v", len(want), len(deps), deps)
	}
	for i, d := range deps {
		if d.String() != want[i] {
			t.Errorf("deps[%d] = %q, want %q", i, d.String(), want[i])
		}
		if d.Scope != Runtime || d.Optional {
			t.Errorf("deps[%d] has scope %q optional %v", i, d.Scope, d.Optional)
		}
	}
}

func TestParseRequirementsURLFragments(t *testing.T) {
	input := "cmsml @ https://files.example.org/cmsml-0.2.zip#sha256=abc123\n" +
		"numpy>=1.0  # comment\n" +
		"pyyaml\t#tab comment\n" +
		"#numpy==2.0\n"
	deps, err := ParseRequirements(strings.NewReader(input), Runtime)
	if err != nil {
		t.Fatalf("ParseRequirements failed: %v", err)
	}

	want := []string{"cmsml @ https://files.example.org/cmsml-0.2.zip#sha256=abc123", "numpy>=1.0", "pyyaml"}
	if len(deps) != len(want) {
		t.Fatalf("expected %d deps, got %d: %v", len(want), len(deps), deps)
	}
	for i, d := range deps {
		if d.String() != want[i] {
			t.Errorf("deps[%d] = %q, want %q", i, d.String(), want[i])
		}
	}
}

func TestParseRequirementsDevelopmentScope(t *testing.T) {
	deps, err := ParseRequirements(strings.NewReader("flake8\npytest>=7\n"), Development)
	if err != nil {
		t.Fatalf("ParseRequirements failed: %v", err)
	}
	for _, d := range deps {
		if d.Scope != Development || !d.Optional {
			t.Errorf("%s: scope %q optional %v", d.Name, d.Scope, d.Optional)
		}
	}
}

func TestParseRequirementsRejectsOptions(t *testing.T) {
	_, err := ParseRequirements(strings.NewReader("numpy\n-r other.txt\n"), Runtime)
	if err == nil {
		t.Fatal("expected error for pip option line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestValidReference(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"cms_tfaot.scripts.tfaot_compile:main", true},
		{"pkg:Main.run", true},
		{"cms_tfaot.scripts.tfaot_compile", false},
		{":main", false},
		{"pkg:", false},
		{"1pkg:main", false},
		{"pkg.mod-x:main", false},
	}

	for _, tt := range tests {
		if got := ValidReference(tt.ref); got != tt.want {
			t.Errorf("ValidReference(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestScriptEntryParts(t *testing.T) {
	e := ScriptEntry{Name: "cms_tfaot_compile", Reference: "cms_tfaot.scripts.tfaot_compile:main"}
	if e.Module() != "cms_tfaot.scripts.tfaot_compile" {
		t.Errorf("Module() = %q", e.Module())
	}
	if e.Callable() != "main" {
		t.Errorf("Callable() = %q", e.Callable())
	}
}
