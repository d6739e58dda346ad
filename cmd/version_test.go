package cmd

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestVersion_Plain(t *testing.T) {
	out, err := execRoot(t, []string{"version"})
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "repopolicy ") || strings.Count(out, "\n") != 1 {
		t.Errorf("unexpected output %q", out)
	}
}

func TestVersion_Extended(t *testing.T) {
	out, err := execRoot(t, []string{"version", "--extended"})
	if err != nil {
		t.Fatalf("version --extended failed: %v", err)
	}
	for _, want := range []string{"Source: ", "Go version: " + runtime.Version(), "Platform: " + runtime.GOOS} {
		if !strings.Contains(out, want) {
			t.Errorf("extended output misses %q:\n%s", want, out)
		}
	}
}

func TestVersion_JSON(t *testing.T) {
	out, err := execRoot(t, []string{"version", "--json"})
	if err != nil {
		t.Fatalf("version --json failed: %v\n%s", err, out)
	}
	var v map[string]any
	if json.Unmarshal([]byte(out), &v) != nil {
		t.Fatalf("version output is not valid JSON: %s", out)
	}
	for _, key := range []string{"version", "source", "goVersion", "platform", "arch"} {
		if _, ok := v[key].(string); !ok {
			t.Errorf("expected %s field in JSON", key)
		}
	}
}
