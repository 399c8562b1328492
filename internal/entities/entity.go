package entities

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnusableReference marks a reference field holding a value that is not an
// identifier, such as an object or a bool. Its target cannot be resolved.
var ErrUnusableReference = errors.New("unusable reference")

// EntityType describes an entity kind and the collection it is stored in
// Example: enclosure entities live in the "enclosures" collection
type EntityType struct {
	Name       string `yaml:"name"`       // Entity type name (e.g., "enclosure")
	Collection string `yaml:"collection"` // Storage collection (e.g., "enclosures")
}

// Validate checks if the entity type is valid
func (et *EntityType) Validate() error {
	if et.Name == "" {
		return fmt.Errorf("entity type name is required")
	}
	if et.Collection == "" {
		return fmt.Errorf("collection is required for entity type %s", et.Name)
	}
	return nil
}

// Entity represents a stored entity document
// Only existence and a few expected reference fields are ever read by the reconciler
type Entity struct {
	Type   string                 // Entity type name (e.g., "enclosure")
	ID     string                 // Document identifier
	Fields map[string]interface{} // Decoded document body
}

// Label returns a human-readable label for reports, falling back to the ID
func (e *Entity) Label() string {
	if name := FieldString(e.Fields, "name"); name != "" {
		return name
	}
	return e.ID
}

// String returns a string representation of the entity
// Format: type:id
func (e *Entity) String() string {
	return fmt.Sprintf("%s:%s", e.Type, e.ID)
}

// FieldString returns the value of a document field rendered as an identifier.
// Missing fields, null values, empty strings and unusable values all yield "".
// Use FieldID where an unusable value must not be mistaken for an absent one.
func FieldString(fields map[string]interface{}, key string) string {
	id, err := FieldID(fields, key)
	if err != nil {
		return ""
	}
	return id
}

// FieldID returns the identifier held by a document field. Missing fields,
// null values and empty strings yield "" with no error. Values other than
// strings and numbers yield ErrUnusableReference.
func FieldID(fields map[string]interface{}, key string) (string, error) {
	if fields == nil {
		return "", nil
	}
	v, ok := fields[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	default:
		return "", fmt.Errorf("%w: field %s holds %T", ErrUnusableReference, key, v)
	}
}
