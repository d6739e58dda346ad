package assets

import (
	"embed"
	"io/fs"
	"path"
)

// Templates holds the canonical config files that checks reconcile against.
// The all: prefix keeps dot-files such as .cspell.json.
//
//go:embed all:embedded_templates
var Templates embed.FS

//go:embed embedded_schemas
var Schemas embed.FS

func GetTemplatesFS() fs.FS {
	if sub, err := fs.Sub(Templates, "embedded_templates"); err == nil {
		return sub
	}
	return Templates
}

func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "embedded_schemas"); err == nil {
		return sub
	}
	return Schemas
}

// Template returns the embedded template for a repository-relative path,
// for instance ".github/workflows/ci.yml".
func Template(rel string) ([]byte, error) {
	return fs.ReadFile(GetTemplatesFS(), path.Clean(rel))
}

// MustTemplate is Template for paths that are known to be embedded.
func MustTemplate(rel string) []byte {
	data, err := Template(rel)
	if err != nil {
		panic("assets: missing embedded template " + rel + ": " + err.Error())
	}
	return data
}

// GetEmbeddedAsset retrieves an embedded asset by path
func GetEmbeddedAsset(p string) ([]byte, error) {
	if data, err := fs.ReadFile(GetTemplatesFS(), p); err == nil {
		return data, nil
	}
	if data, err := fs.ReadFile(GetSchemasFS(), p); err == nil {
		return data, nil
	}
	return nil, fs.ErrNotExist
}
