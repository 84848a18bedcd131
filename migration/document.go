package migration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/schemaforge/artifact"
	"github.com/GoCodeAlone/schemaforge/schema"
)

// Document is the plan handed to the external renderer for one migration.
// A create document has no revert list; it is reverted by dropping the
// table.
type Document struct {
	Name      string           `json:"name"`
	ClassName string           `json:"class_name"`
	Table     string           `json:"table"`
	Create    bool             `json:"create"`
	Apply     []Operation      `json:"apply"`
	Revert    []Operation      `json:"revert,omitempty"`
	Warnings  []schema.Warning `json:"warnings,omitempty"`
}

// Marshal encodes d as indented JSON.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan document: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseDocument decodes a plan document.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("parse plan document: %w", err)
	}
	return &d, nil
}

// Checksum fingerprints the document's apply operations the same way the
// history record of its migration does.
func (d Document) Checksum() string {
	return checksum(d.Apply)
}

// checksum fingerprints an operation list.
func checksum(ops []Operation) string {
	data, _ := json.Marshal(ops)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// Emitter receives plan documents before the history is written.
type Emitter interface {
	// Emit stores doc at path, replacing any earlier version.
	Emit(ctx context.Context, path string, doc Document) error
	// Discard removes a document whose pending migration was cancelled.
	Discard(ctx context.Context, path string) error
}

// StoreEmitter writes plan documents to an artifact store, keyed by path.
type StoreEmitter struct {
	Store artifact.Store
}

func (e StoreEmitter) Emit(ctx context.Context, path string, doc Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	if err := e.Store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("emit %s: %w", doc.Name, err)
	}
	return nil
}

func (e StoreEmitter) Discard(ctx context.Context, path string) error {
	if err := e.Store.Delete(ctx, path); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		return fmt.Errorf("discard %s: %w", path, err)
	}
	return nil
}

// LoadDocument reads the plan document stored at path.
func LoadDocument(ctx context.Context, store artifact.Store, path string) (*Document, error) {
	rc, err := store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("read plan document: %w", err)
	}
	return ParseDocument(buf.Bytes())
}
