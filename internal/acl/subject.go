package acl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnsupportedSubjectID signals a subject id shape no decision path understands.
// It points at a caller wiring bug and must never be turned into a plain denial.
var ErrUnsupportedSubjectID = errors.New("acl: unsupported subject id")

type refKind uint8

const (
	refNotYetCreated refKind = iota
	refObject
	refComposite
	refInvalid
)

// CompositeID is the (client_id, object_id) pair most Lingvodoc objects are addressed by.
type CompositeID struct {
	ClientID int64
	ObjectID int64
}

// SubjectRef identifies the instance an action targets. The zero value is NotYetCreated.
type SubjectRef struct {
	kind     refKind
	clientID int64
	objectID int64
}

// ByID references an instance by a single object id.
func ByID(objectID int64) SubjectRef {
	return SubjectRef{kind: refObject, objectID: objectID}
}

// ByComposite references an instance by its composite id.
func ByComposite(clientID, objectID int64) SubjectRef {
	return SubjectRef{kind: refComposite, clientID: clientID, objectID: objectID}
}

// NotYetCreated references no instance; used when checking creation rights.
func NotYetCreated() SubjectRef {
	return SubjectRef{kind: refNotYetCreated}
}

// IsComposite reports whether the ref carries a composite id.
func (r SubjectRef) IsComposite() bool { return r.kind == refComposite }

// IsObject reports whether the ref carries a single object id.
func (r SubjectRef) IsObject() bool { return r.kind == refObject }

// IsNotYetCreated reports whether the ref points at no instance.
func (r SubjectRef) IsNotYetCreated() bool { return r.kind == refNotYetCreated }

// Composite returns the composite id, if any.
func (r SubjectRef) Composite() (CompositeID, bool) {
	if r.kind != refComposite {
		return CompositeID{}, false
	}
	return CompositeID{ClientID: r.clientID, ObjectID: r.objectID}, true
}

// ObjectID returns the object id component for object and composite refs.
func (r SubjectRef) ObjectID() (int64, bool) {
	if r.kind != refObject && r.kind != refComposite {
		return 0, false
	}
	return r.objectID, true
}

func (r SubjectRef) String() string {
	switch r.kind {
	case refNotYetCreated:
		return "none"
	case refObject:
		return strconv.FormatInt(r.objectID, 10)
	case refComposite:
		return fmt.Sprintf("%d:%d", r.clientID, r.objectID)
	default:
		return "invalid"
	}
}

func (r SubjectRef) validate() error {
	switch r.kind {
	case refNotYetCreated, refObject, refComposite:
		return nil
	default:
		return fmt.Errorf("%w: ref kind %d", ErrUnsupportedSubjectID, r.kind)
	}
}

// SubjectRefFrom converts a loosely typed subject id into a SubjectRef.
// Accepted shapes: nil, integer types, CompositeID, [2]int64, []int64 or []int of length two.
func SubjectRefFrom(v any) (SubjectRef, error) {
	switch id := v.(type) {
	case nil:
		return NotYetCreated(), nil
	case SubjectRef:
		return id, id.validate()
	case int:
		return ByID(int64(id)), nil
	case int32:
		return ByID(int64(id)), nil
	case int64:
		return ByID(id), nil
	case CompositeID:
		return ByComposite(id.ClientID, id.ObjectID), nil
	case *CompositeID:
		if id == nil {
			return NotYetCreated(), nil
		}
		return ByComposite(id.ClientID, id.ObjectID), nil
	case [2]int64:
		return ByComposite(id[0], id[1]), nil
	case []int64:
		if len(id) == 2 {
			return ByComposite(id[0], id[1]), nil
		}
	case []int:
		if len(id) == 2 {
			return ByComposite(int64(id[0]), int64(id[1])), nil
		}
	}
	return SubjectRef{kind: refInvalid}, fmt.Errorf("%w: %T", ErrUnsupportedSubjectID, v)
}

// ParseSubjectRefJSON decodes a JSON subject id: null or absent, a number, or a
// two-element [client_id, object_id] array.
func ParseSubjectRefJSON(raw json.RawMessage) (SubjectRef, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return NotYetCreated(), nil
	}
	switch trimmed[0] {
	case '[':
		var pair []int64
		if err := json.Unmarshal(trimmed, &pair); err != nil || len(pair) != 2 {
			return SubjectRef{kind: refInvalid}, fmt.Errorf("%w: %s", ErrUnsupportedSubjectID, trimmed)
		}
		return ByComposite(pair[0], pair[1]), nil
	default:
		id, err := strconv.ParseInt(string(trimmed), 10, 64)
		if err != nil {
			return SubjectRef{kind: refInvalid}, fmt.Errorf("%w: %s", ErrUnsupportedSubjectID, trimmed)
		}
		return ByID(id), nil
	}
}

// MarshalJSON renders the ref in the shape ParseSubjectRefJSON accepts.
func (r SubjectRef) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case refNotYetCreated:
		return []byte("null"), nil
	case refObject:
		return []byte(strconv.FormatInt(r.objectID, 10)), nil
	case refComposite:
		return json.Marshal([2]int64{r.clientID, r.objectID})
	default:
		return nil, r.validate()
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SubjectRef) UnmarshalJSON(data []byte) error {
	ref, err := ParseSubjectRefJSON(data)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// SubjectRefFromQuery reads client_id/object_id query parameters. Both present
// yields a composite ref, object_id alone a single-id ref, neither NotYetCreated.
func SubjectRefFromQuery(values url.Values) (SubjectRef, error) {
	rawClient := strings.TrimSpace(values.Get("client_id"))
	rawObject := strings.TrimSpace(values.Get("object_id"))
	if rawClient == "" && rawObject == "" {
		return NotYetCreated(), nil
	}
	if rawObject == "" {
		return SubjectRef{kind: refInvalid}, fmt.Errorf("%w: client_id without object_id", ErrUnsupportedSubjectID)
	}
	objectID, err := strconv.ParseInt(rawObject, 10, 64)
	if err != nil {
		return SubjectRef{kind: refInvalid}, fmt.Errorf("%w: object_id %q", ErrUnsupportedSubjectID, rawObject)
	}
	if rawClient == "" {
		return ByID(objectID), nil
	}
	clientID, err := strconv.ParseInt(rawClient, 10, 64)
	if err != nil {
		return SubjectRef{kind: refInvalid}, fmt.Errorf("%w: client_id %q", ErrUnsupportedSubjectID, rawClient)
	}
	return ByComposite(clientID, objectID), nil
}
