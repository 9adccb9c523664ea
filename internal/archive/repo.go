package archive

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

var _ Store = (*Repo)(nil)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repo) FindContactByAddress(ctx context.Context, address string) (*Contact, error) {
	var c Contact
	if err := r.db.WithContext(ctx).
		Where("address = ?", address).
		First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *Repo) CreateContact(ctx context.Context, c *Contact) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) UpdateContactName(ctx context.Context, id uint64, name string) error {
	return r.db.WithContext(ctx).Model(&Contact{}).
		Where("id = ?", id).
		Update("name", name).Error
}

func (r *Repo) FindConversationsBySize(ctx context.Context, contactIDs []uint64, size int) ([]uint64, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}
	touching := r.db.Model(&ConversationContact{}).
		Select("conversation_id").
		Where("contact_id IN ?", contactIDs)

	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&ConversationContact{}).
		Select("conversation_id").
		Where("conversation_id IN (?)", touching).
		Group("conversation_id").
		Having("COUNT(*) = ?", size).
		Order("conversation_id ASC").
		Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repo) ConversationParticipants(ctx context.Context, conversationID uint64) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&ConversationContact{}).
		Where("conversation_id = ?", conversationID).
		Order("contact_id ASC").
		Pluck("contact_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repo) GetConversation(ctx context.Context, id uint64) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateConversation inserts the conversation first so it has an id, then one
// link row per participant.
func (r *Repo) CreateConversation(ctx context.Context, c *Conversation, contactIDs []uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		links := make([]ConversationContact, 0, len(contactIDs))
		for _, id := range contactIDs {
			links = append(links, ConversationContact{ConversationID: c.ID, ContactID: id})
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
}

func (r *Repo) RenameConversation(ctx context.Context, id uint64, name string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		Update("name", name).Error
}

func (r *Repo) FindMessage(ctx context.Context, key MessageKey) (*Message, error) {
	q := r.db.WithContext(ctx).
		Where("date = ? AND conversation_id = ?", key.Date.UTC(), key.ConversationID)
	if key.Policy != DedupByConversation {
		q = q.Where("contact_id = ?", key.ContactID)
	}
	if key.Text == nil {
		q = q.Where("text IS NULL")
	} else {
		q = q.Where("text = ?", *key.Text)
	}

	var m Message
	if err := q.Order("id ASC").First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *Repo) CreateMessage(ctx context.Context, m *Message) error {
	m.Date = m.Date.UTC()
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) CreateMedia(ctx context.Context, m *Media) error {
	return r.db.WithContext(ctx).Create(m).Error
}
