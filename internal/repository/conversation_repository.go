package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusconnect/campusconnect-api/internal/models"
)

const conversationColumns = `id, type, name, participant_uids, pair_key, participant_info,
last_message_text, last_message_timestamp, last_message_sender_id, created_at`

// ConversationRepository persists conversations and messages.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository constructs the repository.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindOrCreateDirect returns the direct conversation for the pair key,
// creating it when absent. The unique index on pair_key makes concurrent
// creation collapse to a single row; the losing insert re-reads the winner.
func (r *ConversationRepository) FindOrCreateDirect(ctx context.Context, conversation *models.Conversation) (*models.Conversation, bool, error) {
	if conversation.PairKey == nil {
		return nil, false, fmt.Errorf("direct conversation requires a pair key")
	}
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}

	const insert = `INSERT INTO conversations (` + conversationColumns + `)
VALUES (:id, :type, :name, :participant_uids, :pair_key, :participant_info,
:last_message_text, :last_message_timestamp, :last_message_sender_id, :created_at)
ON CONFLICT (pair_key) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, insert, conversation)
	if err != nil {
		return nil, false, fmt.Errorf("create direct conversation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("check direct conversation insert: %w", err)
	}
	if rows > 0 {
		return conversation, true, nil
	}

	const query = `SELECT ` + conversationColumns + ` FROM conversations WHERE pair_key = $1`
	var existing models.Conversation
	if err := r.db.GetContext(ctx, &existing, query, *conversation.PairKey); err != nil {
		return nil, false, fmt.Errorf("load direct conversation: %w", err)
	}
	return &existing, false, nil
}

// CreateGroup inserts a new group conversation.
func (r *ConversationRepository) CreateGroup(ctx context.Context, conversation *models.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	const insert = `INSERT INTO conversations (` + conversationColumns + `)
VALUES (:id, :type, :name, :participant_uids, :pair_key, :participant_info,
:last_message_text, :last_message_timestamp, :last_message_sender_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, insert, conversation); err != nil {
		return fmt.Errorf("create group conversation: %w", err)
	}
	return nil
}

// GetByID fetches a conversation by identifier.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	var conversation models.Conversation
	if err := r.db.GetContext(ctx, &conversation, query, id); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ListForUser returns the user's conversations, most recent activity first.
// Conversations without messages sort by creation time.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
WHERE participant_uids @> ARRAY[$1]::text[]
ORDER BY COALESCE(last_message_timestamp, created_at) DESC`
	var conversations []models.Conversation
	if err := r.db.SelectContext(ctx, &conversations, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// AppendMessage writes a message and refreshes the conversation's
// last-message snapshot in the same transaction.
func (r *ConversationRepository) AppendMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO messages (id, conversation_id, sender_id, sender_name, text, sent_at)
VALUES (:id, :conversation_id, :sender_id, :sender_name, :text, :sent_at)`
	if _, err := tx.NamedExecContext(ctx, insert, message); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	const update = `UPDATE conversations SET
last_message_text = $1, last_message_timestamp = $2, last_message_sender_id = $3
WHERE id = $4`
	result, err := tx.ExecContext(ctx, update, message.Text, message.Timestamp, message.SenderID, message.ConversationID)
	if err != nil {
		return fmt.Errorf("update conversation snapshot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check conversation snapshot rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message append: %w", err)
	}
	return nil
}

// ListMessages returns up to limit messages in ascending send order.
// When before is set, only messages sent strictly earlier are returned,
// which pages history backwards.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, limit int, before *time.Time) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id, conversation_id, sender_id, sender_name, text, sent_at
FROM messages WHERE conversation_id = $1`
	args := []interface{}{conversationID}
	if before != nil {
		query += ` AND sent_at < $2`
		args = append(args, *before)
	}
	query += fmt.Sprintf(` ORDER BY sent_at DESC LIMIT %d`, limit)

	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Reverse to ascending order for rendering.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
