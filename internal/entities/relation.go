package entities

import "fmt"

// Role represents one endpoint of a relation type
// Example: the "farm" role of farm_enclosure points at farm entities via the "farm" field
type Role struct {
	Name       string `yaml:"name"`        // Role name (e.g., "farm")
	EntityType string `yaml:"entity_type"` // Entity type the role points to (e.g., "farm")
	Field      string `yaml:"field"`       // Record field holding the endpoint ID (e.g., "farm")
}

// Extract returns the endpoint identifier held by the record for this role.
// An empty string means the record carries no reference. A value that is not
// an identifier yields ErrUnusableReference.
func (r *Role) Extract(record *RelationRecord) (string, error) {
	if record == nil {
		return "", nil
	}
	return FieldID(record.Fields, r.Field)
}

// Validate checks if the role is valid
func (r *Role) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("role name is required")
	}
	if r.EntityType == "" {
		return fmt.Errorf("entity type is required for role %s", r.Name)
	}
	if r.Field == "" {
		return fmt.Errorf("field is required for role %s", r.Name)
	}
	return nil
}

// RelationType represents a join collection with exactly two endpoint roles
// Example: farm_enclosure stored in "farm_enclosures" with roles farm and enclosure
type RelationType struct {
	Name       string `yaml:"name"`       // Relation type name (e.g., "farm_enclosure")
	Collection string `yaml:"collection"` // Storage collection (e.g., "farm_enclosures")
	RoleA      Role   `yaml:"role_a"`
	RoleB      Role   `yaml:"role_b"`
}

// Roles returns both roles in declaration order
func (rt *RelationType) Roles() [2]Role {
	return [2]Role{rt.RoleA, rt.RoleB}
}

// Validate checks if the relation type is valid
func (rt *RelationType) Validate() error {
	if rt.Name == "" {
		return fmt.Errorf("relation type name is required")
	}
	if rt.Collection == "" {
		return fmt.Errorf("collection is required for relation type %s", rt.Name)
	}
	if err := rt.RoleA.Validate(); err != nil {
		return fmt.Errorf("relation type %s: %w", rt.Name, err)
	}
	if err := rt.RoleB.Validate(); err != nil {
		return fmt.Errorf("relation type %s: %w", rt.Name, err)
	}
	if rt.RoleA.Name == rt.RoleB.Name {
		return fmt.Errorf("relation type %s: duplicate role name %s", rt.Name, rt.RoleA.Name)
	}
	if rt.RoleA.Field == rt.RoleB.Field {
		return fmt.Errorf("relation type %s: roles %s and %s share field %s", rt.Name, rt.RoleA.Name, rt.RoleB.Name, rt.RoleA.Field)
	}
	return nil
}
