package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ConversationType distinguishes 1:1 chats from named group chats.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// ParticipantInfo is the display snapshot stored per participant.
type ParticipantInfo struct {
	FullName string `json:"fullName"`
}

// ParticipantInfoMap maps participant user IDs to their display snapshots.
// Stored as JSONB.
type ParticipantInfoMap map[string]ParticipantInfo

// Value implements driver.Valuer.
func (m ParticipantInfoMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *ParticipantInfoMap) Scan(src interface{}) error {
	if src == nil {
		*m = ParticipantInfoMap{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("unsupported participant info type %T", src)
}

// Conversation is a direct (exactly two participants) or group chat. Direct
// conversations carry a canonical pair key built from the sorted participant
// IDs; a unique index on it makes creation idempotent.
type Conversation struct {
	ID                   string             `db:"id" json:"id"`
	Type                 ConversationType   `db:"type" json:"type"`
	Name                 *string            `db:"name" json:"name,omitempty"`
	ParticipantUIDs      pq.StringArray     `db:"participant_uids" json:"participantUIDs"`
	PairKey              *string            `db:"pair_key" json:"-"`
	ParticipantInfo      ParticipantInfoMap `db:"participant_info" json:"participantInfo"`
	LastMessageText      *string            `db:"last_message_text" json:"lastMessageText,omitempty"`
	LastMessageTimestamp *time.Time         `db:"last_message_timestamp" json:"lastMessageTimestamp,omitempty"`
	LastMessageSenderID  *string            `db:"last_message_sender_id" json:"lastMessageSenderId,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"createdAt"`
}

// HasParticipant reports whether the given user belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, uid := range c.ParticipantUIDs {
		if uid == userID {
			return true
		}
	}
	return false
}

// Message is an immutable chat message owned by exactly one conversation.
// The sender name is a denormalised snapshot taken at send time.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	SenderName     string    `db:"sender_name" json:"senderName"`
	Text           string    `db:"text" json:"text"`
	Timestamp      time.Time `db:"sent_at" json:"timestamp"`
}
