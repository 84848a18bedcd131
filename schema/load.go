package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the serialization of a spec document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported spec file extension %q", filepath.Ext(path))
	}
}

// LoadFile reads a spec document from a YAML or JSON file.
func LoadFile(path string) (*Spec, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}
	spec, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("parse spec file %s: %w", path, err)
	}
	return spec, nil
}

// Decode parses one spec document. Unknown keys are rejected.
func Decode(r io.Reader, format Format) (*Spec, error) {
	var spec Spec
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty spec document")
			}
			return nil, err
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty spec document")
			}
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown spec format %q", format)
	}
	return &spec, nil
}

// Encode writes s in the given format.
func Encode(w io.Writer, s Spec, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	default:
		return fmt.Errorf("unknown spec format %q", format)
	}
}

// SpecFiles lists the spec documents directly inside dir, sorted by name.
func SpecFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read spec directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatFor(e.Name()); err != nil {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
