package assets

import (
	"encoding/json"
	"io/fs"
	"sort"
	"strings"
)

// SchemaInfo holds schema metadata.
type SchemaInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Draft string `json:"draft"`
}

const (
	PrecommitSchema = "pre-commit-config.json"
	ConfigSchema    = "repopolicy-config.json"
)

// GetSchema returns the embedded schema bytes by relative path (e.g., "pre-commit-config.json").
func GetSchema(relPath string) ([]byte, bool) {
	data, err := fs.ReadFile(GetSchemasFS(), relPath)
	return data, err == nil
}

// GetSchemaNames returns the embedded schemas sorted by name.
func GetSchemaNames() []SchemaInfo {
	var infos []SchemaInfo
	for _, a := range Registry {
		if a.Family != "schema" {
			continue
		}
		if _, ok := GetSchema(a.Path); !ok {
			continue
		}
		infos = append(infos, SchemaInfo{
			Name:  strings.TrimSuffix(a.Path, ".json"),
			Path:  a.Path,
			Draft: detectDraft(a.Path),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// detectDraft heuristically detects draft from schema bytes via $schema key.
func detectDraft(path string) string {
	data, ok := GetSchema(path)
	if !ok {
		return "Unknown"
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "Unknown"
	}
	v, _ := doc["$schema"].(string)
	switch {
	case strings.Contains(v, "draft-07"):
		return "Draft-07"
	case strings.Contains(v, "2020-12"):
		return "Draft-2020-12"
	default:
		return "Unknown"
	}
}
