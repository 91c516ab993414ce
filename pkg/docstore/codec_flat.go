package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const deletedAttr = "$$deleted"

// flatCodec implements the flat storage mode: one file per entity set, one
// canonical JSON record per line, last-write-wins by replay order.
type flatCodec struct{}

// EncodeRecord produces the line appended for an insert or update - the
// full post-mutation document, reusing the same canonical field ordering as
// the directory codec's config.json so the two codecs share one "what does
// an encoded document look like" answer.
func (flatCodec) EncodeRecord(set EntitySetDescriptor, doc Document) ([]byte, error) {
	return encodeConfigJSON(set, doc)
}

// EncodeTombstone produces the line appended for a remove: the key field
// plus "$$deleted": true.
func (flatCodec) EncodeTombstone(set EntitySetDescriptor, keyField FieldDescriptor, keyValue any) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	writeField := func(name string, val any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(name)
		if err != nil {
			return err
		}

		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := json.Marshal(val)
		if err != nil {
			return err
		}

		buf.Write(valBytes)

		return nil
	}

	if err := writeField(entitySetAttr, set.Name); err != nil {
		return nil, err
	}

	if keyField.Name != "" {
		if err := writeField(keyField.Name, keyValue); err != nil {
			return nil, err
		}
	}

	if err := writeField(deletedAttr, true); err != nil {
		return nil, err
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Decode replays every line of a flat file in order, applying each as an
// insert/overwrite and honoring tombstones, to produce the final set of
// live documents keyed by publicKey/key uniqueness. A malformed trailing
// line - the newest, least-trusted record, consistent with a crash mid
// append - is detected and ignored rather than aborting the whole load.
func (flatCodec) Decode(set EntitySetDescriptor, data []byte) ([]Document, error) {
	lines := bytes.Split(data, []byte("\n"))

	lastNonEmpty := -1

	for i, l := range lines {
		if len(bytes.TrimSpace(l)) > 0 {
			lastNonEmpty = i
		}
	}

	keyField, hasKey := set.keyField()

	order := make([]string, 0, len(lines))
	live := make(map[string]Document, len(lines))

	for i, raw := range lines {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		doc, deleted, key, err := decodeFlatLine(set, keyField, hasKey, line)
		if err != nil {
			if i == lastNonEmpty {
				break
			}

			return nil, newError(KindDecodeError, set.Name, "", err)
		}

		if _, seen := live[key]; !seen {
			order = append(order, key)
		}

		if deleted {
			delete(live, key)
		} else {
			live[key] = doc
		}
	}

	result := make([]Document, 0, len(live))

	for _, key := range order {
		if doc, ok := live[key]; ok {
			result = append(result, doc)
		}
	}

	return result, nil
}

func decodeFlatLine(set EntitySetDescriptor, keyField FieldDescriptor, hasKey bool, line []byte) (doc Document, deleted bool, key string, err error) {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, false, "", err
	}

	if _, ok := raw[deletedAttr]; ok {
		if hasKey {
			if rv, ok := raw[keyField.Name]; ok {
				var v any
				if err := json.Unmarshal(rv, &v); err != nil {
					return nil, false, "", err
				}

				key = fmt.Sprint(v)
			}
		}

		return nil, true, key, nil
	}

	doc, err = decodeConfigJSONFields(set, raw)
	if err != nil {
		return nil, false, "", err
	}

	if hasKey {
		if v, ok := doc[keyField.Name]; ok {
			key = fmt.Sprint(v)
		}
	}

	return doc, false, key, nil
}
