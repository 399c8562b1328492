// Package catalog declares which relation types the reconciler sweeps and
// which soft references the anomaly reporter checks.
//
// Adding a relation type means adding a catalog entry; the sweep engine is
// generic over every entry.
package catalog

import (
	"bytes"
	"fmt"
	"os"

	"github.com/camarize/reconciler/internal/entities"
	"gopkg.in/yaml.v3"
)

// Catalog is the declarative description of the store's entity types,
// relation types (in sweep order) and expected references.
type Catalog struct {
	EntityTypes  []entities.EntityType   `yaml:"entity_types"`
	Relations    []entities.RelationType `yaml:"relations"`
	Expectations []entities.Expectation  `yaml:"expectations"`
}

// Default returns the built-in catalog of the farm application
func Default() *Catalog {
	return &Catalog{
		EntityTypes: []entities.EntityType{
			{Name: "user", Collection: "users"},
			{Name: "farm", Collection: "farms"},
			{Name: "enclosure", Collection: "enclosures"},
			{Name: "sensor", Collection: "sensors"},
		},
		Relations: []entities.RelationType{
			{
				Name:       "farm_enclosure",
				Collection: "farm_enclosures",
				RoleA:      entities.Role{Name: "farm", EntityType: "farm", Field: "farm"},
				RoleB:      entities.Role{Name: "enclosure", EntityType: "enclosure", Field: "enclosure"},
			},
			{
				Name:       "user_farm",
				Collection: "user_farms",
				RoleA:      entities.Role{Name: "user", EntityType: "user", Field: "user"},
				RoleB:      entities.Role{Name: "farm", EntityType: "farm", Field: "farm"},
			},
			{
				Name:       "sensor_enclosure",
				Collection: "sensor_enclosures",
				RoleA:      entities.Role{Name: "sensor", EntityType: "sensor", Field: "sensor_id"},
				RoleB:      entities.Role{Name: "enclosure", EntityType: "enclosure", Field: "enclosure_id"},
			},
		},
		Expectations: []entities.Expectation{
			{
				Name:        "enclosure_owner",
				EntityType:  "enclosure",
				Field:       "user",
				Target:      "user",
				Description: "Enclosure missing owning-User reference",
			},
		},
	}
}

// Load reads a YAML catalog file and validates it.
// Unknown keys are rejected so that a misspelled field cannot silently
// disable a relation type.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// Validate checks names are unique and every reference resolves to a declared entity type
func (c *Catalog) Validate() error {
	if len(c.Relations) == 0 && len(c.Expectations) == 0 {
		return fmt.Errorf("catalog declares no relations and no expectations")
	}

	types := make(map[string]bool, len(c.EntityTypes))
	// collection -> owner, so deletions can never reach an entity collection
	owners := make(map[string]string, len(c.EntityTypes)+len(c.Relations))
	for i := range c.EntityTypes {
		et := &c.EntityTypes[i]
		if err := et.Validate(); err != nil {
			return err
		}
		if types[et.Name] {
			return fmt.Errorf("duplicate entity type %s", et.Name)
		}
		types[et.Name] = true
		if _, ok := owners[et.Collection]; !ok {
			owners[et.Collection] = "entity type " + et.Name
		}
	}

	relations := make(map[string]bool, len(c.Relations))
	for i := range c.Relations {
		rt := &c.Relations[i]
		if err := rt.Validate(); err != nil {
			return err
		}
		if relations[rt.Name] {
			return fmt.Errorf("duplicate relation type %s", rt.Name)
		}
		relations[rt.Name] = true

		if owner, ok := owners[rt.Collection]; ok {
			return fmt.Errorf("relation type %s: collection %s is already used by %s", rt.Name, rt.Collection, owner)
		}
		owners[rt.Collection] = "relation type " + rt.Name

		for _, role := range rt.Roles() {
			if !types[role.EntityType] {
				return fmt.Errorf("relation type %s: role %s points at undeclared entity type %s", rt.Name, role.Name, role.EntityType)
			}
		}
	}

	expectations := make(map[string]bool, len(c.Expectations))
	for i := range c.Expectations {
		e := &c.Expectations[i]
		if err := e.Validate(); err != nil {
			return err
		}
		if expectations[e.Name] {
			return fmt.Errorf("duplicate expectation %s", e.Name)
		}
		expectations[e.Name] = true

		if !types[e.EntityType] {
			return fmt.Errorf("expectation %s: undeclared entity type %s", e.Name, e.EntityType)
		}
		if e.Target != "" && !types[e.Target] {
			return fmt.Errorf("expectation %s: undeclared target entity type %s", e.Name, e.Target)
		}
		if e.Target != "" && e.Field == "" {
			return fmt.Errorf("expectation %s: target requires a field", e.Name)
		}
	}

	return nil
}

// EntityType looks up an entity type by name
func (c *Catalog) EntityType(name string) (*entities.EntityType, bool) {
	for i := range c.EntityTypes {
		if c.EntityTypes[i].Name == name {
			return &c.EntityTypes[i], true
		}
	}
	return nil, false
}

// Relation looks up a relation type by name
func (c *Catalog) Relation(name string) (*entities.RelationType, bool) {
	for i := range c.Relations {
		if c.Relations[i].Name == name {
			return &c.Relations[i], true
		}
	}
	return nil, false
}

// Collection returns the collection storing the named entity type
func (c *Catalog) Collection(entityType string) (string, error) {
	et, ok := c.EntityType(entityType)
	if !ok {
		return "", fmt.Errorf("unknown entity type %s", entityType)
	}
	return et.Collection, nil
}
