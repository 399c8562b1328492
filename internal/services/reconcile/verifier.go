package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
	"github.com/camarize/reconciler/internal/services/catalog"
	"golang.org/x/sync/errgroup"
)

// Endpoint is the resolved state of one side of a relation record
type Endpoint struct {
	Role       string
	EntityType string
	ID         string // "" when the record carries no reference for this role
	Exists     bool
}

// Verification is the outcome of checking both endpoints of a record.
// It is only produced when both lookups completed.
type Verification struct {
	Record    *entities.RelationRecord
	Endpoints [2]Endpoint
}

// Dangling reports whether at least one endpoint is confirmed absent
func (v *Verification) Dangling() bool {
	return !v.Endpoints[0].Exists || !v.Endpoints[1].Exists
}

// Missing returns the role names whose endpoint does not exist
func (v *Verification) Missing() []string {
	var missing []string
	for _, ep := range v.Endpoints {
		if !ep.Exists {
			missing = append(missing, ep.Role)
		}
	}
	return missing
}

// EndpointIDs returns role name -> endpoint ID as stored
func (v *Verification) EndpointIDs() map[string]string {
	ids := make(map[string]string, len(v.Endpoints))
	for _, ep := range v.Endpoints {
		ids[ep.Role] = ep.ID
	}
	return ids
}

// Verifier resolves whether the endpoints of relation records exist
type Verifier struct {
	entities     repositories.EntityRepository
	catalog      *catalog.Catalog
	checkTimeout time.Duration
}

// NewVerifier creates a Verifier. A non-positive checkTimeout leaves lookups
// bounded only by the caller's context.
func NewVerifier(entityRepo repositories.EntityRepository, cat *catalog.Catalog, checkTimeout time.Duration) *Verifier {
	return &Verifier{
		entities:     entityRepo,
		catalog:      cat,
		checkTimeout: checkTimeout,
	}
}

// Verify looks up both endpoints of record concurrently and waits for both.
// A failed lookup or an unreadable reference yields a *VerificationError and
// no Verification: an endpoint that could not be resolved is never reported
// as absent.
func (v *Verifier) Verify(ctx context.Context, rt *entities.RelationType, record *entities.RelationRecord) (*Verification, error) {
	result := &Verification{Record: record}

	roles := rt.Roles()
	var collections [2]string
	for i, role := range roles {
		collection, err := v.catalog.Collection(role.EntityType)
		if err != nil {
			return nil, fmt.Errorf("relation type %s: %w", rt.Name, err)
		}
		collections[i] = collection
	}

	for i, role := range roles {
		ep := &result.Endpoints[i]
		ep.Role = role.Name
		ep.EntityType = role.EntityType

		id, err := role.Extract(record)
		if err != nil {
			return nil, &VerificationError{
				Relation: rt.Name,
				RecordID: record.ID,
				Role:     role.Name,
				Err:      err,
			}
		}
		ep.ID = id
	}

	var g errgroup.Group
	for i, role := range roles {
		ep := &result.Endpoints[i]

		// No reference means nothing to point at.
		if ep.ID == "" {
			continue
		}

		g.Go(func() error {
			exists, err := v.exists(ctx, collections[i], ep.ID)
			if err != nil {
				return &VerificationError{
					Relation: rt.Name,
					RecordID: record.ID,
					Role:     role.Name,
					EntityID: ep.ID,
					Err:      err,
				}
			}
			ep.Exists = exists
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (v *Verifier) exists(ctx context.Context, collection, id string) (bool, error) {
	if v.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.checkTimeout)
		defer cancel()
	}
	return v.entities.Exists(ctx, collection, id)
}
