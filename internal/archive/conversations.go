package archive

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// NameSeparator joins participant labels in a conversation's display name.
const NameSeparator = ", "

type ConversationResolver struct {
	store Store
}

func NewConversationResolver(store Store) *ConversationResolver {
	return &ConversationResolver{store: store}
}

// DisplayName renders participants sorted by id, name if present else address.
func DisplayName(participants []Contact) string {
	sorted := slices.Clone(participants)
	slices.SortFunc(sorted, func(a, b Contact) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	labels := make([]string, 0, len(sorted))
	for _, c := range sorted {
		labels = append(labels, c.Label())
	}
	return strings.Join(labels, NameSeparator)
}

// Resolve maps the exact participant set to its conversation. Order and
// repeated entries in participants do not matter.
func (r *ConversationResolver) Resolve(ctx context.Context, participants []Contact) (Resolution[Conversation], error) {
	participants = uniqueByID(participants)
	if len(participants) == 0 {
		return Resolution[Conversation]{}, ErrNoParticipants
	}

	name := DisplayName(participants)
	ids := make([]uint64, 0, len(participants))
	for _, c := range participants {
		ids = append(ids, c.ID)
	}
	slices.Sort(ids)

	existing, err := r.findExact(ctx, ids)
	if err != nil {
		return Resolution[Conversation]{}, err
	}

	if existing != nil {
		if existing.Name != nil && *existing.Name == name {
			return Resolution[Conversation]{Value: *existing, Outcome: Unchanged}, nil
		}
		if err := r.store.RenameConversation(ctx, existing.ID, name); err != nil {
			return Resolution[Conversation]{}, fmt.Errorf("rename conversation %d: %w", existing.ID, err)
		}
		renamed := *existing
		renamed.Name = ptrTo(name)
		return Resolution[Conversation]{Value: renamed, Outcome: Updated}, nil
	}

	conv := &Conversation{Name: ptrTo(name)}
	if err := r.store.CreateConversation(ctx, conv, ids); err != nil {
		return Resolution[Conversation]{}, fmt.Errorf("create conversation %q: %w", name, err)
	}
	return Resolution[Conversation]{Value: *conv, Outcome: Created}, nil
}

func (r *ConversationResolver) findExact(ctx context.Context, sortedIDs []uint64) (*Conversation, error) {
	candidates, err := r.store.FindConversationsBySize(ctx, sortedIDs, len(sortedIDs))
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	for _, id := range candidates {
		members, err := r.store.ConversationParticipants(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("conversation %d participants: %w", id, err)
		}
		slices.Sort(members)
		if !slices.Equal(members, sortedIDs) {
			continue
		}
		conv, err := r.store.GetConversation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load conversation %d: %w", id, err)
		}
		return conv, nil
	}
	return nil, nil
}

func uniqueByID(in []Contact) []Contact {
	seen := make(map[uint64]struct{}, len(in))
	out := make([]Contact, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
