package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/ws"
	"github.com/campusconnect/campusconnect-api/pkg/config"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
)

type conversationStore interface {
	FindOrCreateDirect(ctx context.Context, conversation *models.Conversation) (*models.Conversation, bool, error)
	CreateGroup(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	AppendMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int, before *time.Time) ([]models.Message, error)
}

type messagingUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type messagingPusher interface {
	BroadcastToUsers(userIDs []string, event ws.Event)
}

type messagingMetrics interface {
	RecordMessageSent()
}

// MessagingService implements conversations and real-time messaging.
type MessagingService struct {
	store   conversationStore
	users   messagingUserStore
	pusher  messagingPusher
	cfg     config.MessagingConfig
	metrics messagingMetrics
	logger  *zap.Logger
}

// SetMetrics attaches an optional metrics collector.
func (s *MessagingService) SetMetrics(metrics messagingMetrics) {
	s.metrics = metrics
}

// NewMessagingService constructs the service.
func NewMessagingService(store conversationStore, users messagingUserStore, pusher messagingPusher, cfg config.MessagingConfig, logger *zap.Logger) *MessagingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessagingService{store: store, users: users, pusher: pusher, cfg: cfg, logger: logger}
}

// DirectPairKey builds the canonical key for a 1:1 conversation. The two IDs
// are sorted first, so either participant produces the same key.
func DirectPairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// StartDirect finds or creates the 1:1 conversation between the caller and
// the target. Repeated calls, from either side, return the same conversation.
func (s *MessagingService) StartDirect(ctx context.Context, claims *models.JWTClaims, targetUserID string) (*models.Conversation, error) {
	if targetUserID == claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot start a conversation with yourself")
	}

	target, err := s.users.FindByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target user")
	}
	if !target.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "target account is inactive")
	}

	// Participants are stored in sorted order so the persisted pair matches
	// the pair key no matter which side opened the conversation.
	participants := []string{claims.UserID, targetUserID}
	sort.Strings(participants)
	pairKey := DirectPairKey(claims.UserID, targetUserID)
	conversation := &models.Conversation{
		Type:            models.ConversationDirect,
		ParticipantUIDs: participants,
		PairKey:         &pairKey,
		ParticipantInfo: models.ParticipantInfoMap{
			claims.UserID: {FullName: claims.FullName},
			targetUserID:  {FullName: target.FullName},
		},
	}

	result, created, err := s.store.FindOrCreateDirect(ctx, conversation)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open conversation")
	}
	if created {
		s.pusher.BroadcastToUsers(result.ParticipantUIDs, ws.Event{Type: "conversation:updated", Data: result})
	}
	return result, nil
}

// CreateGroup opens a named group conversation. The caller is always a
// participant.
func (s *MessagingService) CreateGroup(ctx context.Context, claims *models.JWTClaims, name string, participantUIDs []string) (*models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group name is required")
	}

	members := map[string]struct{}{claims.UserID: {}}
	for _, uid := range participantUIDs {
		members[uid] = struct{}{}
	}
	if len(members) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a group needs at least two participants")
	}

	info := models.ParticipantInfoMap{claims.UserID: {FullName: claims.FullName}}
	uids := make([]string, 0, len(members))
	for uid := range members {
		uids = append(uids, uid)
		if uid == claims.UserID {
			continue
		}
		user, err := s.users.FindByID(ctx, uid)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "participant does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
		}
		info[uid] = models.ParticipantInfo{FullName: user.FullName}
	}
	sort.Strings(uids)

	conversation := &models.Conversation{
		Type:            models.ConversationGroup,
		Name:            &name,
		ParticipantUIDs: uids,
		ParticipantInfo: info,
	}
	if err := s.store.CreateGroup(ctx, conversation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	s.pusher.BroadcastToUsers(conversation.ParticipantUIDs, ws.Event{Type: "conversation:updated", Data: conversation})
	return conversation, nil
}

// Send appends a message and pushes it to every participant. The message
// write and the conversation's last-message snapshot commit together.
func (s *MessagingService) Send(ctx context.Context, claims *models.JWTClaims, conversationID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message text cannot be blank")
	}

	conversation, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conversation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	if !conversation.HasParticipant(claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant in this conversation")
	}

	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       claims.UserID,
		SenderName:     claims.FullName,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	conversation.LastMessageText = &message.Text
	conversation.LastMessageTimestamp = &message.Timestamp
	conversation.LastMessageSenderID = &message.SenderID

	if s.metrics != nil {
		s.metrics.RecordMessageSent()
	}

	s.pusher.BroadcastToUsers(conversation.ParticipantUIDs, ws.Event{Type: "message:new", Data: message})
	s.pusher.BroadcastToUsers(conversation.ParticipantUIDs, ws.Event{Type: "conversation:updated", Data: conversation})
	return message, nil
}

// ListConversations returns the caller's conversations, most recent first.
func (s *MessagingService) ListConversations(ctx context.Context, claims *models.JWTClaims) ([]models.Conversation, error) {
	conversations, err := s.store.ListForUser(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	return conversations, nil
}

// ListMessages returns message history in ascending send order. Only
// participants may read a conversation.
func (s *MessagingService) ListMessages(ctx context.Context, claims *models.JWTClaims, conversationID string, limit int, before *time.Time) ([]models.Message, error) {
	conversation, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conversation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	if !conversation.HasParticipant(claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant in this conversation")
	}

	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	messages, err := s.store.ListMessages(ctx, conversationID, limit, before)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, nil
}
