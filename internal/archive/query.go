package archive

import (
	"context"
	"slices"
	"time"
)

type ConversationView struct {
	ID       uint64    `json:"id"`
	Name     *string   `json:"name"`
	Contacts []Contact `json:"contacts"`
}

type MessageView struct {
	ID             uint64      `json:"id"`
	Date           time.Time   `json:"date"`
	Type           MessageType `json:"type"`
	Direction      Direction   `json:"direction"`
	Text           *string     `json:"text"`
	ContactID      uint64      `json:"contact_id"`
	ConversationID uint64      `json:"conversation_id"`
	Sender         string      `json:"contact"`
	Media          []Media     `json:"media"`
}

type MessagePage struct {
	Messages []MessageView `json:"messages"`
	Total    int64         `json:"total"`
	HasMore  bool          `json:"has_more"`
	HasNewer bool          `json:"has_newer"`
}

// PageCursor selects a page relative to a reference message. BeforeID wins
// when both are set.
type PageCursor struct {
	Limit    int
	BeforeID uint64
	AfterID  uint64
}

type MediaView struct {
	Media
	MessageDate *time.Time `json:"date"`
	ContactID   *uint64    `json:"contact_id"`
	Name        *string    `json:"name"`
	Address     *string    `json:"address"`
}

type MediaPage struct {
	Media   []MediaView `json:"media"`
	Total   int64       `json:"total"`
	HasMore bool        `json:"has_more"`
}

func (r *Repo) ListConversations(ctx context.Context, search string) ([]ConversationView, error) {
	q := r.db.WithContext(ctx).Order("id ASC")
	if search != "" {
		q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}
	var convs []Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, err
	}
	return r.withContacts(ctx, convs)
}

func (r *Repo) GetConversationView(ctx context.Context, id uint64) (*ConversationView, error) {
	conv, err := r.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := r.withContacts(ctx, []Conversation{*conv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *Repo) withContacts(ctx context.Context, convs []Conversation) ([]ConversationView, error) {
	views := make([]ConversationView, 0, len(convs))
	if len(convs) == 0 {
		return views, nil
	}
	ids := make([]uint64, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	var links []ConversationContact
	if err := r.db.WithContext(ctx).
		Where("conversation_id IN ?", ids).
		Order("contact_id ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	contactIDs := make([]uint64, 0, len(links))
	for _, l := range links {
		contactIDs = append(contactIDs, l.ContactID)
	}
	contacts, err := r.contactsByID(ctx, contactIDs)
	if err != nil {
		return nil, err
	}

	byConv := make(map[uint64][]Contact, len(convs))
	for _, l := range links {
		if c, ok := contacts[l.ContactID]; ok {
			byConv[l.ConversationID] = append(byConv[l.ConversationID], c)
		}
	}
	for _, c := range convs {
		members := byConv[c.ID]
		if members == nil {
			members = []Contact{}
		}
		views = append(views, ConversationView{ID: c.ID, Name: c.Name, Contacts: members})
	}
	return views, nil
}

func (r *Repo) contactsByID(ctx context.Context, ids []uint64) (map[uint64]Contact, error) {
	out := make(map[uint64]Contact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var contacts []Contact
	if err := r.db.WithContext(ctx).Where("id IN ?", slices.Compact(slices.Sorted(slices.Values(ids)))).Find(&contacts).Error; err != nil {
		return nil, err
	}
	for _, c := range contacts {
		out[c.ID] = c
	}
	return out, nil
}

// ListMessages returns one page of a conversation, newest first. Cursors
// compare on (date, id) so messages sharing a timestamp are never skipped.
func (r *Repo) ListMessages(ctx context.Context, conversationID uint64, cur PageCursor) (*MessagePage, error) {
	if cur.Limit <= 0 || cur.Limit > 100 {
		cur.Limit = 50
	}
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&Message{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return nil, err
	}

	q := db.Where("conversation_id = ?", conversationID).Limit(cur.Limit)
	ascending := false
	switch {
	case cur.BeforeID > 0:
		if ref, err := r.messageByID(ctx, cur.BeforeID); err == nil {
			q = q.Where("(date < ? OR (date = ? AND id < ?))", ref.Date, ref.Date, ref.ID)
		}
	case cur.AfterID > 0:
		if ref, err := r.messageByID(ctx, cur.AfterID); err == nil {
			q = q.Where("(date > ? OR (date = ? AND id > ?))", ref.Date, ref.Date, ref.ID)
		}
		ascending = true
	}
	if ascending {
		q = q.Order("date ASC").Order("id ASC")
	} else {
		q = q.Order("date DESC").Order("id DESC")
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	if ascending {
		slices.Reverse(msgs)
	}

	page := &MessagePage{Total: total}
	if len(msgs) > 0 {
		newest, oldest := msgs[0], msgs[len(msgs)-1]
		var older, newer int64
		if err := db.Model(&Message{}).
			Where("conversation_id = ?", conversationID).
			Where("(date < ? OR (date = ? AND id < ?))", oldest.Date, oldest.Date, oldest.ID).
			Count(&older).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&Message{}).
			Where("conversation_id = ?", conversationID).
			Where("(date > ? OR (date = ? AND id > ?))", newest.Date, newest.Date, newest.ID).
			Count(&newer).Error; err != nil {
			return nil, err
		}
		page.HasMore = older > 0
		page.HasNewer = newer > 0
	}

	views, err := r.messageViews(ctx, msgs)
	if err != nil {
		return nil, err
	}
	page.Messages = views
	return page, nil
}

func (r *Repo) SearchMessages(ctx context.Context, conversationID uint64, text string) ([]MessageView, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND LOWER(text) LIKE LOWER(?)", conversationID, "%"+text+"%").
		Order("date DESC").Order("id DESC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return r.messageViews(ctx, msgs)
}

func (r *Repo) GetMessageView(ctx context.Context, id uint64) (*MessageView, error) {
	m, err := r.messageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := r.messageViews(ctx, []Message{*m})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *Repo) messageByID(ctx context.Context, id uint64) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *Repo) messageViews(ctx context.Context, msgs []Message) ([]MessageView, error) {
	views := make([]MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return views, nil
	}
	msgIDs := make([]uint64, 0, len(msgs))
	contactIDs := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		msgIDs = append(msgIDs, m.ID)
		contactIDs = append(contactIDs, m.ContactID)
	}
	contacts, err := r.contactsByID(ctx, contactIDs)
	if err != nil {
		return nil, err
	}

	var media []Media
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", msgIDs).
		Order("id ASC").
		Find(&media).Error; err != nil {
		return nil, err
	}
	byMsg := make(map[uint64][]Media, len(msgs))
	for _, md := range media {
		byMsg[md.MessageID] = append(byMsg[md.MessageID], md)
	}

	for _, m := range msgs {
		attached := byMsg[m.ID]
		if attached == nil {
			attached = []Media{}
		}
		views = append(views, MessageView{
			ID:             m.ID,
			Date:           m.Date,
			Type:           m.Type,
			Direction:      m.Direction,
			Text:           m.Text,
			ContactID:      m.ContactID,
			ConversationID: m.ConversationID,
			Sender:         contacts[m.ContactID].Label(),
			Media:          attached,
		})
	}
	return views, nil
}

func (r *Repo) GetMedia(ctx context.Context, id uint64) (*Media, error) {
	var m Media
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *Repo) GetMediaView(ctx context.Context, id uint64) (*MediaView, error) {
	m, err := r.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := r.mediaViews(ctx, []Media{*m})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListConversationMedia pages a conversation's attachments, newest message first.
func (r *Repo) ListConversationMedia(ctx context.Context, conversationID uint64, limit, offset int) (*MediaPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&Media{}).
		Joins("JOIN message ON message.id = media.message_id").
		Where("message.conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, err
	}

	var media []Media
	if err := db.Model(&Media{}).
		Select("media.*").
		Joins("JOIN message ON message.id = media.message_id").
		Where("message.conversation_id = ?", conversationID).
		Order("message.date DESC").Order("media.id ASC").
		Offset(offset).Limit(limit).
		Find(&media).Error; err != nil {
		return nil, err
	}

	views, err := r.mediaViews(ctx, media)
	if err != nil {
		return nil, err
	}
	return &MediaPage{Media: views, Total: total, HasMore: int64(offset+limit) < total}, nil
}

func (r *Repo) mediaViews(ctx context.Context, media []Media) ([]MediaView, error) {
	views := make([]MediaView, 0, len(media))
	if len(media) == 0 {
		return views, nil
	}
	msgIDs := make([]uint64, 0, len(media))
	for _, m := range media {
		msgIDs = append(msgIDs, m.MessageID)
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).Where("id IN ?", msgIDs).Find(&msgs).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint64]Message, len(msgs))
	contactIDs := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		contactIDs = append(contactIDs, m.ContactID)
	}
	contacts, err := r.contactsByID(ctx, contactIDs)
	if err != nil {
		return nil, err
	}

	for _, md := range media {
		v := MediaView{Media: md}
		if msg, ok := byID[md.MessageID]; ok {
			v.MessageDate = &msg.Date
			if c, ok := contacts[msg.ContactID]; ok {
				v.ContactID = &c.ID
				v.Name = c.Name
				v.Address = &c.Address
			}
		}
		views = append(views, v)
	}
	return views, nil
}
