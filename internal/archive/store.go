package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("archive: record not found")
	ErrNoParticipants = errors.New("archive: conversation needs at least one participant")
)

// Store is the write-side port used by the resolvers and ingesters. Lookups
// return ErrNotFound when nothing matches.
type Store interface {
	FindContactByAddress(ctx context.Context, address string) (*Contact, error)
	CreateContact(ctx context.Context, c *Contact) error
	UpdateContactName(ctx context.Context, id uint64, name string) error

	// FindConversationsBySize returns ids of conversations that have exactly
	// size participants, at least one of which is in contactIDs.
	FindConversationsBySize(ctx context.Context, contactIDs []uint64, size int) ([]uint64, error)
	ConversationParticipants(ctx context.Context, conversationID uint64) ([]uint64, error)
	GetConversation(ctx context.Context, id uint64) (*Conversation, error)
	CreateConversation(ctx context.Context, c *Conversation, contactIDs []uint64) error
	RenameConversation(ctx context.Context, id uint64, name string) error

	FindMessage(ctx context.Context, key MessageKey) (*Message, error)
	CreateMessage(ctx context.Context, m *Message) error
	CreateMedia(ctx context.Context, m *Media) error
}

// DedupKey selects which columns decide that a message was already imported.
type DedupKey string

const (
	// DedupByContact matches on (contact, date, text, conversation).
	DedupByContact DedupKey = "contact"
	// DedupByConversation matches on (date, text, conversation).
	DedupByConversation DedupKey = "conversation"
)

func ParseDedupKey(s string) (DedupKey, error) {
	switch k := DedupKey(strings.ToLower(strings.TrimSpace(s))); k {
	case DedupByContact, DedupByConversation:
		return k, nil
	default:
		return "", fmt.Errorf("unknown dedup key %q", s)
	}
}

// MessageKey is the lookup tuple for duplicate detection. A nil Text matches
// only rows whose text is NULL.
type MessageKey struct {
	Policy         DedupKey
	ContactID      uint64
	Date           time.Time
	Text           *string
	ConversationID uint64
}

// Outcome tells whether a resolver created, changed or only read a row.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

type Resolution[T any] struct {
	Value   T
	Outcome Outcome
}
