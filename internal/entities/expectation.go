package entities

import "fmt"

// Expectation represents a reference that entities of a type are expected,
// but not required, to carry. Violations are reported and never repaired.
// Example: enclosures are expected to carry a "user" field pointing at a user
type Expectation struct {
	Name        string `yaml:"name"`        // Expectation name (e.g., "enclosure_owner")
	EntityType  string `yaml:"entity_type"` // Entity type to scan (e.g., "enclosure")
	Field       string `yaml:"field"`       // Expected reference field (e.g., "user")
	Target      string `yaml:"target"`      // Optional entity type the field must point to
	Condition   string `yaml:"condition"`   // Optional CEL expression flagging an entity when true
	Description string `yaml:"description"` // Finding description
}

// Validate checks if the expectation is valid
func (e *Expectation) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("expectation name is required")
	}
	if e.EntityType == "" {
		return fmt.Errorf("entity type is required for expectation %s", e.Name)
	}
	if e.Field == "" && e.Condition == "" {
		return fmt.Errorf("expectation %s needs a field or a condition", e.Name)
	}
	return nil
}

// AnomalyFinding represents one reported soft-constraint violation
type AnomalyFinding struct {
	Expectation string `json:"expectation"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description"`
}

// String returns a string representation of the finding
func (f AnomalyFinding) String() string {
	if f.Label != "" && f.Label != f.EntityID {
		return fmt.Sprintf("%s %s (%s): %s", f.EntityType, f.Label, f.EntityID, f.Description)
	}
	return fmt.Sprintf("%s %s: %s", f.EntityType, f.EntityID, f.Description)
}
