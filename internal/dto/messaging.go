package dto

// StartDirectConversationRequest opens (or finds) a 1:1 conversation.
type StartDirectConversationRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
}

// CreateGroupConversationRequest opens a named group chat.
type CreateGroupConversationRequest struct {
	Name            string   `json:"name" validate:"required"`
	ParticipantUIDs []string `json:"participantUIDs" validate:"required,min=2"`
}

// SendMessageRequest carries a single outgoing message body.
type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// MessageQuery paginates message history within a conversation.
type MessageQuery struct {
	Limit  int
	Before string
}
