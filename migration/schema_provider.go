// Package migration turns successive schema snapshots of a table into
// ordered, mirror-symmetric migration operations and keeps the table's
// migration history current.
package migration

import (
	"fmt"

	"github.com/GoCodeAlone/schemaforge/schema"
)

// SpecProvider supplies the desired spec of one table.
type SpecProvider interface {
	// Source identifies where the spec came from (e.g. a file path).
	Source() string
	// Spec returns the desired spec.
	Spec() (*schema.Spec, error)
}

// FileProvider reads a spec document from disk on every call.
type FileProvider struct {
	Path string
}

func (p FileProvider) Source() string { return p.Path }

func (p FileProvider) Spec() (*schema.Spec, error) {
	return schema.LoadFile(p.Path)
}

// StaticProvider serves an in-memory spec.
type StaticProvider struct {
	Name string
	Doc  schema.Spec
}

func (p StaticProvider) Source() string { return p.Name }

func (p StaticProvider) Spec() (*schema.Spec, error) {
	s := p.Doc.Clone()
	return &s, nil
}

// DirProviders returns one FileProvider per spec file in dir, in name order.
func DirProviders(dir string) ([]SpecProvider, error) {
	files, err := schema.SpecFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list specs: %w", err)
	}
	providers := make([]SpecProvider, len(files))
	for i, f := range files {
		providers[i] = FileProvider{Path: f}
	}
	return providers, nil
}
