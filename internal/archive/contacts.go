package archive

import (
	"context"
	"errors"
	"fmt"
)

type ContactResolver struct {
	store Store
}

func NewContactResolver(store Store) *ContactResolver {
	return &ContactResolver{store: store}
}

// Resolve returns the contact for address, creating it on first sighting. A
// stored contact without a name is backfilled when name is supplied.
func (r *ContactResolver) Resolve(ctx context.Context, address string, name *string) (Resolution[Contact], error) {
	address = NormalizeAddress(address)
	if name != nil && *name == "" {
		name = nil
	}

	existing, err := r.store.FindContactByAddress(ctx, address)
	switch {
	case err == nil:
		if (existing.Name == nil || *existing.Name == "") && name != nil {
			if err := r.store.UpdateContactName(ctx, existing.ID, *name); err != nil {
				return Resolution[Contact]{}, fmt.Errorf("backfill contact %d name: %w", existing.ID, err)
			}
			updated := *existing
			updated.Name = ptrTo(*name)
			return Resolution[Contact]{Value: updated, Outcome: Updated}, nil
		}
		return Resolution[Contact]{Value: *existing, Outcome: Unchanged}, nil

	case errors.Is(err, ErrNotFound):
		c := &Contact{Address: address, Name: name}
		if err := r.store.CreateContact(ctx, c); err != nil {
			return Resolution[Contact]{}, fmt.Errorf("create contact %q: %w", address, err)
		}
		return Resolution[Contact]{Value: *c, Outcome: Created}, nil

	default:
		return Resolution[Contact]{}, fmt.Errorf("lookup contact %q: %w", address, err)
	}
}

func ptrTo[T any](v T) *T { return &v }
