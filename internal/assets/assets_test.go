package assets

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestGetTemplatesFS(t *testing.T) {
	fsys := GetTemplatesFS()
	if fsys == nil {
		t.Fatal("GetTemplatesFS returned nil")
	}

	data, err := fs.ReadFile(fsys, ".cspell.json")
	if err != nil {
		t.Fatalf("Failed to read cspell template: %v", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("cspell template is not JSON: %v", err)
	}
	if _, ok := cfg["ignorePaths"]; !ok {
		t.Error("cspell template has no ignorePaths section")
	}
}

func TestRegistryEntriesAreEmbedded(t *testing.T) {
	for _, a := range Registry {
		t.Run(a.Path, func(t *testing.T) {
			var fsys fs.FS
			switch a.Family {
			case "template":
				fsys = GetTemplatesFS()
			case "schema":
				fsys = GetSchemasFS()
			default:
				t.Fatalf("unknown family %q", a.Family)
			}
			data, err := fs.ReadFile(fsys, a.Path)
			if err != nil {
				t.Fatalf("asset not embedded: %v", err)
			}
			if len(data) == 0 {
				t.Fatal("asset is empty")
			}
		})
	}
}

func TestWorkflowTemplatesParse(t *testing.T) {
	for _, name := range []string{"cd.yml", "ci.yml", "clean-caches.yml", "lock.yml", "pr-linting.yml", "release-drafter.yml"} {
		t.Run(name, func(t *testing.T) {
			data := MustTemplate(".github/workflows/" + name)
			var doc map[string]any
			if err := yaml.Unmarshal(data, &doc); err != nil {
				t.Fatalf("invalid YAML: %v", err)
			}
			if _, ok := doc["jobs"]; !ok {
				t.Error("workflow has no jobs")
			}
			if _, ok := doc["on"]; !ok {
				t.Error("workflow has no trigger")
			}
		})
	}
}

func TestTemplateMissing(t *testing.T) {
	if _, err := Template("does/not/exist.yml"); err == nil {
		t.Fatal("expected error for missing template")
	}
	defer func() {
		if recover() == nil {
			t.Error("MustTemplate should panic on missing template")
		}
	}()
	MustTemplate("does/not/exist.yml")
}

func TestGetSchemaNames(t *testing.T) {
	infos := GetSchemaNames()
	if len(infos) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(infos))
	}
	if infos[0].Name != "pre-commit-config" || infos[1].Name != "repopolicy-config" {
		t.Errorf("unexpected schema order: %+v", infos)
	}
	for _, info := range infos {
		if info.Draft != "Draft-07" {
			t.Errorf("%s: expected Draft-07, got %s", info.Name, info.Draft)
		}
	}
}

func TestGetEmbeddedAsset(t *testing.T) {
	data, err := GetEmbeddedAsset(PrecommitSchema)
	if err != nil {
		t.Fatalf("GetEmbeddedAsset(%q) failed: %v", PrecommitSchema, err)
	}
	if !bytes.Contains(data, []byte(`"repos"`)) {
		t.Error("pre-commit schema does not mention repos")
	}
	if _, err := GetEmbeddedAsset("missing.json"); err == nil {
		t.Error("expected error for missing asset")
	}
}
