package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jsreport/fsstore/pkg/fs"
)

const configFileName = "config.json"

// encodedFile is one file produced by encoding a document, relative to the
// document's (staging) directory.
type encodedFile struct {
	name string
	data []byte
}

// directoryCodec implements the directory storage mode: one directory per
// document, config.json for scalar/non-document fields, one file per
// document-property field.
type directoryCodec struct {
	schema *Schema
}

// Encode produces the files that make up a document's on-disk directory.
// It performs no I/O; the caller (the transaction engine) is responsible
// for writing each file durably into a staging directory.
func (c *directoryCodec) Encode(set EntitySetDescriptor, doc Document) ([]encodedFile, error) {
	configBytes, err := encodeConfigJSON(set, doc)
	if err != nil {
		return nil, err
	}

	files := []encodedFile{{name: configFileName, data: configBytes}}

	for _, f := range set.documentProperties() {
		val, ok := doc[f.Name]
		if !ok {
			continue
		}

		data, err := propertyBytes(f, val)
		if err != nil {
			return nil, fmt.Errorf("encoding document property %q: %w", f.Name, err)
		}

		ext := c.schema.ResolveExtension(doc, set, f.Name)
		if ext == "" {
			ext = f.Document.Extension
		}

		files = append(files, encodedFile{name: f.Name + "." + ext, data: data})
	}

	return files, nil
}

// Decode reads a document directory back into a Document. fsys and dir
// locate the (already-live, non-staging) document directory.
func (c *directoryCodec) Decode(fsys fs.FS, set EntitySetDescriptor, dir string) (Document, error) {
	configBytes, err := fsys.ReadFile(filepath.Join(dir, configFileName))
	if err != nil {
		return nil, err
	}

	doc, err := decodeConfigJSON(set, configBytes)
	if err != nil {
		return nil, err
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, f := range set.documentProperties() {
		prefix := f.Name + "."

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
				continue
			}

			data, err := fsys.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}

			doc[f.Name] = propertyValue(f, data)

			break
		}
	}

	return doc, nil
}

// encodeConfigJSON builds config.json with keys in schema field order (plus
// a leading "$entitySet") so two encodings of an equal document are
// byte-identical and diff-friendly.
func encodeConfigJSON(set EntitySetDescriptor, doc Document) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	first := true

	writeField := func(name string, val any) error {
		if !first {
			buf.WriteByte(',')
		}

		first = false

		keyBytes, err := json.Marshal(name)
		if err != nil {
			return err
		}

		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("marshaling field %q: %w", name, err)
		}

		buf.Write(valBytes)

		return nil
	}

	if err := writeField(entitySetAttr, set.Name); err != nil {
		return nil, err
	}

	for _, f := range set.Type.Fields {
		if f.Document != nil {
			continue
		}

		v, ok := doc[f.Name]
		if !ok {
			continue
		}

		if f.Type == FieldDateTimeOffset {
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.RFC3339Nano)
			}
		}

		if err := writeField(f.Name, v); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// decodeConfigJSON is the inverse of encodeConfigJSON. Unknown keys in the
// file (not part of the schema) are ignored; $entitySet is dropped, never
// surfacing in the returned Document (see [Document]).
func decodeConfigJSON(set EntitySetDescriptor, data []byte) (Document, error) {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return decodeConfigJSONFields(set, raw)
}

// decodeConfigJSONFields is the shared scalar-field decode step used by both
// the directory codec's config.json and the flat codec's per-line records.
func decodeConfigJSONFields(set EntitySetDescriptor, raw map[string]json.RawMessage) (Document, error) {
	doc := make(Document, len(raw))

	for _, f := range set.Type.Fields {
		if f.Document != nil {
			continue
		}

		rawVal, ok := raw[f.Name]
		if !ok {
			continue
		}

		val, err := decodeScalarField(f, rawVal)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", f.Name, err)
		}

		doc[f.Name] = val
	}

	return doc, nil
}

func decodeScalarField(f FieldDescriptor, raw json.RawMessage) (any, error) {
	if f.Type == FieldDateTimeOffset {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}

		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}

		return t, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	return v, nil
}

func propertyBytes(f FieldDescriptor, val any) ([]byte, error) {
	switch f.Type {
	case FieldBinary:
		b, ok := val.([]byte)
		if !ok {
			return nil, fmt.Errorf("field %q: expected []byte, got %T", f.Name, val)
		}

		return b, nil
	default:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string, got %T", f.Name, val)
		}

		return []byte(s), nil
	}
}

func propertyValue(f FieldDescriptor, data []byte) any {
	if f.Type == FieldBinary {
		return data
	}

	return string(data)
}
