package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestBinaryVersionDefault(t *testing.T) {
	if BinaryVersion != "dev" {
		t.Errorf("Expected BinaryVersion to be 'dev', got '%s'", BinaryVersion)
	}
}

func TestModuleVersionMatchesBuildInfo(t *testing.T) {
	expected := ""
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		expected = info.Main.Version
	}
	if actual := ModuleVersion(); actual != expected {
		t.Errorf("ModuleVersion() = '%s', expected '%s'", actual, expected)
	}
}

func TestVersionPrefersLdflags(t *testing.T) {
	orig := BinaryVersion
	t.Cleanup(func() { BinaryVersion = orig })

	BinaryVersion = "v1.4.0"
	if got := Version(); got != "v1.4.0" {
		t.Errorf("Version() = %q, expected ldflags value", got)
	}

	BinaryVersion = "dev"
	got := Version()
	if mv := ModuleVersion(); mv == "" || mv == "(devel)" {
		if got != "dev" {
			t.Errorf("Version() = %q, expected dev fallback", got)
		}
	} else if got != mv {
		t.Errorf("Version() = %q, expected module version %q", got, mv)
	}
}
