package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// Message is one immutable transcript entry.
type Message struct {
	id         string
	text       string
	sender     valueobjects.SenderRole
	senderID   string
	createdAt  time.Time
	attachment string
}

// NewMessage creates a message with a fresh identifier.
func NewMessage(text string, sender valueobjects.SenderRole, senderID string, createdAt time.Time) *Message {
	return &Message{
		id:        uuid.New().String(),
		text:      text,
		sender:    sender,
		senderID:  senderID,
		createdAt: createdAt,
	}
}

// ReconstructMessage rehydrates a stored message.
func ReconstructMessage(id, text string, sender valueobjects.SenderRole, senderID string, createdAt time.Time, attachment string) (*Message, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("message id cannot be empty")
	}
	if _, err := valueobjects.ParseSenderRole(string(sender)); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	return &Message{
		id:         id,
		text:       text,
		sender:     sender,
		senderID:   senderID,
		createdAt:  createdAt,
		attachment: attachment,
	}, nil
}

// WithAttachment returns a copy carrying an opaque attachment reference.
func (m *Message) WithAttachment(ref string) *Message {
	c := *m
	c.attachment = ref
	return &c
}

// WithID returns a copy under another identifier.
func (m *Message) WithID(id string) *Message {
	c := *m
	c.id = id
	return &c
}

func (m *Message) ID() string                      { return m.id }
func (m *Message) Text() string                    { return m.text }
func (m *Message) Sender() valueobjects.SenderRole { return m.sender }
func (m *Message) SenderID() string                { return m.senderID }
func (m *Message) CreatedAt() time.Time            { return m.createdAt }
func (m *Message) Attachment() string              { return m.attachment }

type messageJSON struct {
	ID         string                  `json:"id"`
	Text       string                  `json:"text"`
	Sender     valueobjects.SenderRole `json:"sender"`
	SenderID   string                  `json:"sender_id,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	Attachment string                  `json:"attachment,omitempty"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:         m.id,
		Text:       m.text,
		Sender:     m.sender,
		SenderID:   m.senderID,
		CreatedAt:  m.createdAt,
		Attachment: m.attachment,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := ReconstructMessage(raw.ID, raw.Text, raw.Sender, raw.SenderID, raw.CreatedAt, raw.Attachment)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}
