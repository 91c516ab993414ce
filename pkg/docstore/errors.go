package docstore

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a docstore [Error].
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota

	// KindInvalidName indicates a publicKey contains forbidden characters
	// or is empty. Raised before any disk write.
	KindInvalidName

	// KindDuplicateKey indicates a publicKey collides within its entity set.
	KindDuplicateKey

	// KindSchemaUnknown indicates an operation on an unregistered entity set.
	KindSchemaUnknown

	// KindIoError indicates an underlying filesystem failure during a
	// transaction's stage/commit sequence.
	KindIoError

	// KindDecodeError indicates a malformed on-disk record encountered
	// during load. A malformed directory-mode document is skipped and
	// logged at Warn; a malformed flat-file line other than the last one
	// fails the load of the whole set with this kind, which [Open] and
	// [Provider.Reload] then return.
	KindDecodeError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidName:
		return "InvalidName"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindSchemaUnknown:
		return "SchemaUnknown"
	case KindIoError:
		return "IoError"
	case KindDecodeError:
		return "DecodeError"
	default:
		return "Unknown"
	}
}

// Error is the uniform error type returned by all public docstore APIs.
//
// Use [errors.As] to extract structured fields:
//
//	var dsErr *docstore.Error
//	if errors.As(err, &dsErr) {
//	    fmt.Printf("%s failed for %s/%s\n", dsErr.Kind, dsErr.EntitySet, dsErr.PublicKey)
//	}
//
// Use [errors.Is] against the Err* sentinels to check kind:
//
//	if errors.Is(err, docstore.ErrDuplicateKey) { ... }
type Error struct {
	// Kind categorizes the failure.
	Kind Kind

	// EntitySet is the entity set involved, when known.
	EntitySet string

	// PublicKey is the document's publicKey, when known.
	PublicKey string

	// Err is the underlying cause, if any.
	Err error
}

// Error formats as "<kind>: <cause> (set=X key=Y)", except that
// KindDuplicateKey is rendered as "Duplicate key".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Kind.String()
	if e.Kind == KindDuplicateKey {
		msg = "Duplicate key"
	}

	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}

	suffix := e.suffix()
	if suffix == "" {
		return msg
	}

	return msg + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Is reports whether target is an *Error of the same [Kind], so that the
// exported Err* sentinels work with [errors.Is] regardless of the
// EntitySet/PublicKey/Err fields attached to a concrete instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == t.Kind
}

func (e *Error) suffix() string {
	switch {
	case e.EntitySet != "" && e.PublicKey != "":
		return fmt.Sprintf("(set=%s key=%s)", e.EntitySet, e.PublicKey)
	case e.EntitySet != "":
		return fmt.Sprintf("(set=%s)", e.EntitySet)
	case e.PublicKey != "":
		return fmt.Sprintf("(key=%s)", e.PublicKey)
	default:
		return ""
	}
}

// Sentinel errors, one per [Kind], for use with [errors.Is].
var (
	ErrInvalidName   = &Error{Kind: KindInvalidName}
	ErrDuplicateKey  = &Error{Kind: KindDuplicateKey}
	ErrSchemaUnknown = &Error{Kind: KindSchemaUnknown}
	ErrIoError       = &Error{Kind: KindIoError}
	ErrDecodeError   = &Error{Kind: KindDecodeError}

	// ErrClosed indicates an operation was attempted on a closed Provider.
	ErrClosed = errors.New("docstore: provider closed")
)

// newError builds an *Error of the given kind with entity set / publicKey context.
func newError(kind Kind, entitySet, publicKey string, cause error) *Error {
	return &Error{
		Kind:      kind,
		EntitySet: entitySet,
		PublicKey: publicKey,
		Err:       cause,
	}
}

func invalidNameErr(entitySet, publicKey string) error {
	return newError(KindInvalidName, entitySet, publicKey, errors.New("publicKey is empty or contains a path separator or leading '~'"))
}

func duplicateKeyErr(entitySet, publicKey string) error {
	return newError(KindDuplicateKey, entitySet, publicKey, fmt.Errorf("Duplicate publicKey %q in entity set %q", publicKey, entitySet))
}

func schemaUnknownErr(entitySet string) error {
	return newError(KindSchemaUnknown, entitySet, "", fmt.Errorf("entity set %q is not registered", entitySet))
}

func ioErr(entitySet, publicKey string, cause error) error {
	return newError(KindIoError, entitySet, publicKey, cause)
}
