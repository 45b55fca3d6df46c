package ir

// Reserved document fields.
const (
	FieldID       = "id"
	FieldScope    = "scope_id"
	FieldRevision = "revision"
	FieldTags     = "tags"
)

// DefaultRevision is assumed for documents whose revision is unset or invalid.
const DefaultRevision int64 = 1

// Document is a physical record stored under an entity kind.
//
// A document is an IRObject whose reserved fields (id, scope_id, revision)
// carry its physical identity. Everything else is opaque to the resolution
// layer except for the fields configured as primary-key or alias fields.
type Document IRObject

// ID returns the physical id, or "" if the document has none.
func (d Document) ID() string {
	return stringField(d, FieldID)
}

// Scope returns the tenant scope, or "" for unscoped documents.
func (d Document) Scope() string {
	return stringField(d, FieldScope)
}

// Revision returns the document revision.
// Unset, non-integer, or non-positive revisions read as DefaultRevision.
func (d Document) Revision() int64 {
	if n, ok := d[FieldRevision].(IRInt); ok && n >= 1 {
		return int64(n)
	}
	return DefaultRevision
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return Document(IRObject(d).Clone())
}

// Normalize returns the plain-Go form of the document: references become
// id strings and every value is a JSON-native Go type.
func (d Document) Normalize() map[string]any {
	if d == nil {
		return nil
	}
	return ToGo(IRObject(d)).(map[string]any)
}

// MarshalJSON encodes the document with sorted keys.
func (d Document) MarshalJSON() ([]byte, error) {
	return IRObject(d).MarshalJSON()
}

// UnmarshalJSON decodes a JSON object into the document.
func (d *Document) UnmarshalJSON(data []byte) error {
	var obj IRObject
	if err := obj.UnmarshalJSON(data); err != nil {
		return err
	}
	*d = Document(obj)
	return nil
}

// StringOf returns the string form of a scalar identity value.
// Strings and references yield their text; other values yield false.
func StringOf(v IRValue) (string, bool) {
	switch val := v.(type) {
	case IRString:
		return string(val), true
	case IRRef:
		return string(val), true
	default:
		return "", false
	}
}

func stringField(d Document, field string) string {
	s, _ := StringOf(d[field])
	return s
}
