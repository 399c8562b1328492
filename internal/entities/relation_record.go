package entities

import "fmt"

// RelationRecord represents one join document in a relation collection
// Example: farm_enclosures/r1 {"farm": "f1", "enclosure": "e7"}
type RelationRecord struct {
	ID     string                 // Record identifier
	Fields map[string]interface{} // Decoded document body (endpoint IDs plus opaque attributes)
}

// Describe returns an audit representation of the record for the given relation type
// Format: id{roleA=endpointA,roleB=endpointB}
func (r *RelationRecord) Describe(rt *RelationType) string {
	return fmt.Sprintf("%s{%s=%s,%s=%s}",
		r.ID,
		rt.RoleA.Name, r.endpoint(rt.RoleA),
		rt.RoleB.Name, r.endpoint(rt.RoleB),
	)
}

// endpoint renders an unusable reference as stored so audit text shows it
func (r *RelationRecord) endpoint(role Role) string {
	id, err := role.Extract(r)
	if err != nil {
		return fmt.Sprintf("%v", r.Fields[role.Field])
	}
	return id
}
