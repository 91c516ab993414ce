package docstore

// StorageMode selects how an entity set is persisted.
type StorageMode int

const (
	// Directory mode stores one subdirectory per document.
	Directory StorageMode = iota

	// Flat mode stores all documents of a set as lines in a single
	// append-only newline-delimited JSON file.
	Flat
)

func (m StorageMode) String() string {
	if m == Flat {
		return "flat"
	}

	return "directory"
}

// FieldType is the semantic type of an entity type field.
type FieldType int

const (
	// FieldString is a UTF-8 text value.
	FieldString FieldType = iota

	// FieldBinary is an opaque byte slice.
	FieldBinary

	// FieldDateTimeOffset is a timestamp with a preserved numeric offset.
	FieldDateTimeOffset

	// FieldComplex references a nested complex type and is passed through
	// to config.json as a plain JSON value.
	FieldComplex
)

// DocumentPropertyDescriptor describes a field that is persisted as its own
// file rather than inline in config.json.
type DocumentPropertyDescriptor struct {
	// Field is the field name.
	Field string

	// Extension is the default file extension (without the leading dot)
	// used when no [FileExtensionResolver] overrides it.
	Extension string

	// EngineHint is an opaque hint for external consumers (e.g. a
	// templating engine selecting a rendering engine by file type). The
	// core never interprets it.
	EngineHint string
}

// FieldDescriptor describes one field of an [EntityTypeDescriptor].
type FieldDescriptor struct {
	// Name is the field name.
	Name string

	// Type is the field's semantic type.
	Type FieldType

	// Key marks this field as the entity type's primary key. Exactly one
	// field per type must set this.
	Key bool

	// PublicKey marks this field as the human-readable name used for
	// filesystem paths. When no field sets this, the key field is used.
	PublicKey bool

	// Document, when non-nil, marks this field as a document property
	// persisted to its own file instead of inline in config.json.
	Document *DocumentPropertyDescriptor
}

// EntityTypeDescriptor describes the ordered fields of an entity type.
// Field order is significant: it is the order config.json keys are emitted
// in, so two encodings of an equal document are byte-identical.
type EntityTypeDescriptor struct {
	// Name identifies the entity type, for diagnostics.
	Name string

	// Fields lists the type's fields in canonical emission order.
	Fields []FieldDescriptor
}

// EntitySetDescriptor describes one registered entity set.
type EntitySetDescriptor struct {
	// Name is the entity set's name, also its top-level path segment.
	Name string

	// Mode selects directory or flat storage.
	Mode StorageMode

	// Type is the entity type bound to this set.
	Type EntityTypeDescriptor
}

func (d EntitySetDescriptor) keyField() (FieldDescriptor, bool) {
	for _, f := range d.Type.Fields {
		if f.Key {
			return f, true
		}
	}

	return FieldDescriptor{}, false
}

func (d EntitySetDescriptor) publicKeyField() (FieldDescriptor, bool) {
	for _, f := range d.Type.Fields {
		if f.PublicKey {
			return f, true
		}
	}

	return d.keyField()
}

func (d EntitySetDescriptor) documentProperties() []FieldDescriptor {
	var props []FieldDescriptor

	for _, f := range d.Type.Fields {
		if f.Document != nil {
			props = append(props, f)
		}
	}

	return props
}

// FileExtensionResolver overrides the file extension used for a document
// property at encode time. Resolvers are consulted in registration order;
// the first one returning ok=true wins; otherwise the schema default is
// used.
type FileExtensionResolver func(doc Document, property string, set EntitySetDescriptor) (ext string, ok bool)

// SchemaDescriptor is the full set of registered entity sets, built by the
// external schema/type registry (see package doc comment) and handed to
// [Open] via [Config.Schema].
type SchemaDescriptor struct {
	Sets []EntitySetDescriptor
}

// Schema is a read-only projection over a [SchemaDescriptor]. It never
// mutates state and never touches disk.
type Schema struct {
	sets      map[string]EntitySetDescriptor
	resolvers []FileExtensionResolver
}

// NewSchema builds a Schema view from a descriptor and an ordered list of
// extension resolvers.
func NewSchema(descriptor SchemaDescriptor, resolvers ...FileExtensionResolver) *Schema {
	sets := make(map[string]EntitySetDescriptor, len(descriptor.Sets))
	for _, s := range descriptor.Sets {
		sets[s.Name] = s
	}

	return &Schema{sets: sets, resolvers: resolvers}
}

// Set returns the descriptor for a registered entity set.
func (s *Schema) Set(name string) (EntitySetDescriptor, bool) {
	d, ok := s.sets[name]
	return d, ok
}

// KeyField returns the primary key field of the given entity set.
func (s *Schema) KeyField(set string) (FieldDescriptor, bool) {
	d, ok := s.sets[set]
	if !ok {
		return FieldDescriptor{}, false
	}

	return d.keyField()
}

// PublicKeyField returns the publicKey field of the given entity set,
// falling back to the key field when no field is flagged PublicKey.
func (s *Schema) PublicKeyField(set string) (FieldDescriptor, bool) {
	d, ok := s.sets[set]
	if !ok {
		return FieldDescriptor{}, false
	}

	return d.publicKeyField()
}

// DocumentProperties returns the document-property fields of an entity set,
// in schema order.
func (s *Schema) DocumentProperties(set string) []FieldDescriptor {
	d, ok := s.sets[set]
	if !ok {
		return nil
	}

	return d.documentProperties()
}

// ResolveExtension returns the file extension to use for a document
// property field of doc, consulting registered resolvers in order before
// falling back to the schema default.
func (s *Schema) ResolveExtension(doc Document, set EntitySetDescriptor, property string) string {
	for _, resolve := range s.resolvers {
		if ext, ok := resolve(doc, property, set); ok {
			return ext
		}
	}

	for _, f := range set.documentProperties() {
		if f.Name == property && f.Document != nil {
			return f.Document.Extension
		}
	}

	return ""
}
