package entities

import (
	"errors"
	"strings"
	"testing"
)

func farmEnclosure() RelationType {
	return RelationType{
		Name:       "farm_enclosure",
		Collection: "farm_enclosures",
		RoleA:      Role{Name: "farm", EntityType: "farm", Field: "farm"},
		RoleB:      Role{Name: "enclosure", EntityType: "enclosure", Field: "enclosure"},
	}
}

func TestRole_Extract(t *testing.T) {
	rt := farmEnclosure()

	tests := []struct {
		name     string
		record   *RelationRecord
		wantA    string
		wantB    string
		wantErrA bool
	}{
		{
			name:   "both endpoints present",
			record: &RelationRecord{ID: "r1", Fields: map[string]interface{}{"farm": "f1", "enclosure": "e1"}},
			wantA:  "f1",
			wantB:  "e1",
		},
		{
			name:   "null endpoint",
			record: &RelationRecord{ID: "r2", Fields: map[string]interface{}{"farm": nil, "enclosure": "e1"}},
			wantA:  "",
			wantB:  "e1",
		},
		{
			name:   "missing endpoint field",
			record: &RelationRecord{ID: "r3", Fields: map[string]interface{}{"enclosure": "e1"}},
			wantA:  "",
			wantB:  "e1",
		},
		{
			name:   "nil record",
			record: nil,
		},
		{
			name:     "object endpoint is unusable",
			record:   &RelationRecord{ID: "r4", Fields: map[string]interface{}{"farm": map[string]interface{}{"$oid": "f1"}, "enclosure": "e1"}},
			wantA:    "",
			wantB:    "e1",
			wantErrA: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotA, err := rt.RoleA.Extract(tt.record)
			if (err != nil) != tt.wantErrA {
				t.Fatalf("RoleA.Extract() error = %v, wantErr %v", err, tt.wantErrA)
			}
			if err != nil && !errors.Is(err, ErrUnusableReference) {
				t.Errorf("RoleA.Extract() error = %v, want ErrUnusableReference", err)
			}
			if gotA != tt.wantA {
				t.Errorf("RoleA.Extract() = %q, want %q", gotA, tt.wantA)
			}
			gotB, err := rt.RoleB.Extract(tt.record)
			if err != nil {
				t.Fatalf("RoleB.Extract() unexpected error: %v", err)
			}
			if gotB != tt.wantB {
				t.Errorf("RoleB.Extract() = %q, want %q", gotB, tt.wantB)
			}
		})
	}
}

func TestRelationType_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(rt *RelationType)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid relation type",
			mutate: func(rt *RelationType) {},
		},
		{
			name:    "missing name",
			mutate:  func(rt *RelationType) { rt.Name = "" },
			wantErr: true,
			errMsg:  "relation type name is required",
		},
		{
			name:    "missing collection",
			mutate:  func(rt *RelationType) { rt.Collection = "" },
			wantErr: true,
			errMsg:  "collection is required",
		},
		{
			name:    "role without field",
			mutate:  func(rt *RelationType) { rt.RoleB.Field = "" },
			wantErr: true,
			errMsg:  "field is required for role enclosure",
		},
		{
			name:    "duplicate role names",
			mutate:  func(rt *RelationType) { rt.RoleB.Name = "farm" },
			wantErr: true,
			errMsg:  "duplicate role name",
		},
		{
			name:    "shared field",
			mutate:  func(rt *RelationType) { rt.RoleB.Field = "farm" },
			wantErr: true,
			errMsg:  "share field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := farmEnclosure()
			tt.mutate(&rt)
			err := rt.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("RelationType.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("RelationType.Validate() error = %v, want message containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestRelationRecord_Describe(t *testing.T) {
	rt := farmEnclosure()
	record := &RelationRecord{ID: "r1", Fields: map[string]interface{}{"farm": "f1", "enclosure": "e9", "since": "2024"}}

	want := "r1{farm=f1,enclosure=e9}"
	if got := record.Describe(&rt); got != want {
		t.Errorf("RelationRecord.Describe() = %v, want %v", got, want)
	}

	unusable := &RelationRecord{ID: "r2", Fields: map[string]interface{}{"farm": true, "enclosure": "e1"}}
	want = "r2{farm=true,enclosure=e1}"
	if got := unusable.Describe(&rt); got != want {
		t.Errorf("RelationRecord.Describe() = %v, want %v", got, want)
	}
}

func TestSweepResult_Counters(t *testing.T) {
	r := SweepResult{Examined: 10, Dangling: 3, Removed: 2, VerifyErrors: 1, DeleteErrors: 1}

	if got := r.Errored(); got != 2 {
		t.Errorf("SweepResult.Errored() = %d, want 2", got)
	}
	if got := r.Clean(); got != 6 {
		t.Errorf("SweepResult.Clean() = %d, want 6", got)
	}
}
