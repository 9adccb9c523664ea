package archive

import "time"

type MessageType string

const (
	TypeSMS MessageType = "sms"
	TypeMMS MessageType = "mms"
)

type Direction string

const (
	DirectionInbox Direction = "inbox"
	DirectionSent  Direction = "sent"
)

type Contact struct {
	ID      uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Address string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"address"`
	Name    *string `gorm:"type:varchar(255)" json:"name"`
}

func (Contact) TableName() string { return "contact" }

// Label is the display form used in conversation names.
func (c Contact) Label() string {
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	return c.Address
}

type Conversation struct {
	ID   uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name *string `gorm:"type:varchar(1024)" json:"name"`
}

func (Conversation) TableName() string { return "conversation" }

type ConversationContact struct {
	ConversationID uint64 `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	ContactID      uint64 `gorm:"primaryKey;autoIncrement:false;index" json:"contact_id"`
}

func (ConversationContact) TableName() string { return "conversation_contact" }

type Message struct {
	ID             uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Date           time.Time   `gorm:"not null;index:idx_message_conversation_date,priority:2" json:"date"`
	Type           MessageType `gorm:"type:varchar(8);not null" json:"type"`
	Direction      Direction   `gorm:"type:varchar(8);not null" json:"direction"`
	Text           *string     `gorm:"type:text" json:"text"`
	ContactID      uint64      `gorm:"not null;index" json:"contact_id"`
	ConversationID uint64      `gorm:"not null;index:idx_message_conversation_date,priority:1" json:"conversation_id"`
}

func (Message) TableName() string { return "message" }

type Media struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID   uint64  `gorm:"not null;index" json:"message_id"`
	ContentType *string `gorm:"type:varchar(255)" json:"content_type"`
	Filename    *string `gorm:"type:varchar(255)" json:"filename"`
	FilePath    *string `gorm:"type:varchar(1024)" json:"-"`
}

func (Media) TableName() string { return "media" }

// Models lists every table owned by this package, in dependency order.
func Models() []any {
	return []any{&Contact{}, &Conversation{}, &ConversationContact{}, &Message{}, &Media{}}
}
