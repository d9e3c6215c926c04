package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/pkg/config"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
)

type mockConversationStore struct {
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
}

func (m *mockConversationStore) FindOrCreateDirect(ctx context.Context, conversation *models.Conversation) (*models.Conversation, bool, error) {
	for _, existing := range m.conversations {
		if existing.PairKey != nil && conversation.PairKey != nil && *existing.PairKey == *conversation.PairKey {
			copied := *existing
			return &copied, false, nil
		}
	}
	if m.conversations == nil {
		m.conversations = make(map[string]*models.Conversation)
	}
	conversation.ID = fmt.Sprintf("conv-%d", len(m.conversations)+1)
	conversation.CreatedAt = time.Now().UTC()
	copied := *conversation
	m.conversations[conversation.ID] = &copied
	return conversation, true, nil
}

func (m *mockConversationStore) CreateGroup(ctx context.Context, conversation *models.Conversation) error {
	if m.conversations == nil {
		m.conversations = make(map[string]*models.Conversation)
	}
	conversation.ID = fmt.Sprintf("conv-%d", len(m.conversations)+1)
	conversation.CreatedAt = time.Now().UTC()
	copied := *conversation
	m.conversations[conversation.ID] = &copied
	return nil
}

func (m *mockConversationStore) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	if conversation, ok := m.conversations[id]; ok {
		copied := *conversation
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversationStore) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var result []models.Conversation
	for _, conversation := range m.conversations {
		if conversation.HasParticipant(userID) {
			result = append(result, *conversation)
		}
	}
	return result, nil
}

func (m *mockConversationStore) AppendMessage(ctx context.Context, message *models.Message) error {
	conversation, ok := m.conversations[message.ConversationID]
	if !ok {
		return sql.ErrNoRows
	}
	if m.messages == nil {
		m.messages = make(map[string][]models.Message)
	}
	message.ID = fmt.Sprintf("msg-%d", len(m.messages[message.ConversationID])+1)
	m.messages[message.ConversationID] = append(m.messages[message.ConversationID], *message)
	conversation.LastMessageText = &message.Text
	conversation.LastMessageTimestamp = &message.Timestamp
	conversation.LastMessageSenderID = &message.SenderID
	return nil
}

func (m *mockConversationStore) ListMessages(ctx context.Context, conversationID string, limit int, before *time.Time) ([]models.Message, error) {
	history := m.messages[conversationID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

type mockMessagingUserStore struct {
	users map[string]*models.User
}

func (m *mockMessagingUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func newMessagingFixture(t *testing.T) (*MessagingService, *mockConversationStore, *mockPusher) {
	t.Helper()
	store := &mockConversationStore{conversations: make(map[string]*models.Conversation)}
	users := &mockMessagingUserStore{users: map[string]*models.User{
		"u1": {ID: "u1", FullName: "Maria Santos", Active: true},
		"u2": {ID: "u2", FullName: "Jose Cruz", Active: true},
		"u3": {ID: "u3", FullName: "Ana Reyes", Active: true},
		"u4": {ID: "u4", FullName: "Gone User", Active: false},
	}}
	pusher := &mockPusher{}
	svc := NewMessagingService(store, users, pusher, config.MessagingConfig{HistoryLimit: 50}, zap.NewNop())
	return svc, store, pusher
}

func memberClaims(id, name string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, FullName: name}
}

func TestDirectPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectPairKey("a", "b"), DirectPairKey("b", "a"))
	assert.Equal(t, "a:b", DirectPairKey("b", "a"))
}

func TestStartDirectIsIdempotentAcrossCallers(t *testing.T) {
	svc, _, pusher := newMessagingFixture(t)

	first, err := svc.StartDirect(context.Background(), memberClaims("u1", "Maria Santos"), "u2")
	require.NoError(t, err)
	second, err := svc.StartDirect(context.Background(), memberClaims("u2", "Jose Cruz"), "u1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, first.PairKey)
	assert.Equal(t, "u1:u2", *first.PairKey)
	assert.Equal(t, "Maria Santos", first.ParticipantInfo["u1"].FullName)
	assert.Equal(t, "Jose Cruz", first.ParticipantInfo["u2"].FullName)

	// Only the first call created anything, so only one push went out.
	assert.Len(t, pusher.events, 1)
	assert.Equal(t, "conversation:updated", pusher.events[0].Type)
}

func TestStartDirectStoresSortedParticipantPair(t *testing.T) {
	svc, store, _ := newMessagingFixture(t)

	// Caller sorts after the target; the stored pair must not follow call order.
	conversation, err := svc.StartDirect(context.Background(), memberClaims("u2", "Jose Cruz"), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, []string(conversation.ParticipantUIDs))
	assert.True(t, sort.StringsAreSorted(conversation.ParticipantUIDs))
	assert.Equal(t, []string{"u1", "u2"}, []string(store.conversations[conversation.ID].ParticipantUIDs))
}

func TestStartDirectRejectsSelfAndInactiveTargets(t *testing.T) {
	svc, _, _ := newMessagingFixture(t)

	_, err := svc.StartDirect(context.Background(), memberClaims("u1", "Maria Santos"), "u1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)

	_, err = svc.StartDirect(context.Background(), memberClaims("u1", "Maria Santos"), "u4")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Status, appErr.Status)
}

func TestCreateGroupIncludesCaller(t *testing.T) {
	svc, _, _ := newMessagingFixture(t)

	group, err := svc.CreateGroup(context.Background(), memberClaims("u1", "Maria Santos"), "Study Group", []string{"u2", "u3", "u2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, group.ParticipantUIDs)
	assert.Equal(t, "Ana Reyes", group.ParticipantInfo["u3"].FullName)
	assert.Nil(t, group.PairKey)
}

func TestCreateGroupNeedsAtLeastTwoParticipants(t *testing.T) {
	svc, _, _ := newMessagingFixture(t)

	_, err := svc.CreateGroup(context.Background(), memberClaims("u1", "Maria Santos"), "Lonely", nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
}

func TestSendUpdatesSnapshotAndPushes(t *testing.T) {
	svc, store, pusher := newMessagingFixture(t)
	conversation, err := svc.StartDirect(context.Background(), memberClaims("u1", "Maria Santos"), "u2")
	require.NoError(t, err)

	message, err := svc.Send(context.Background(), memberClaims("u2", "Jose Cruz"), conversation.ID, "  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", message.Text)
	assert.Equal(t, "Jose Cruz", message.SenderName)

	stored := store.conversations[conversation.ID]
	require.NotNil(t, stored.LastMessageText)
	assert.Equal(t, "hello there", *stored.LastMessageText)
	assert.Equal(t, "u2", *stored.LastMessageSenderID)

	// conversation:updated from creation, then message:new + conversation:updated.
	require.Len(t, pusher.events, 3)
	assert.Equal(t, "message:new", pusher.events[1].Type)
	assert.Equal(t, "conversation:updated", pusher.events[2].Type)
	assert.ElementsMatch(t, []string{"u1", "u2"}, pusher.users[1])
}

func TestSendRejectsBlankMessages(t *testing.T) {
	svc, _, _ := newMessagingFixture(t)
	conversation, err := svc.StartDirect(context.Background(), memberClaims("u1", "Maria Santos"), "u2")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), memberClaims("u1", "Maria Santos"), conversation.ID, "   ")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
}

func TestSendRejectsNonParticipants(t *testing.T) {
	svc, _, _ := newMessagingFixture(t)
	conversation, err := svc.StartDirect(context.Background(), memberClaims("u1", "Maria Santos"), "u2")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), memberClaims("u3", "Ana Reyes"), conversation.ID, "let me in")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)
}

func TestListMessagesRequiresParticipation(t *testing.T) {
	svc, _, _ := newMessagingFixture(t)
	conversation, err := svc.StartDirect(context.Background(), memberClaims("u1", "Maria Santos"), "u2")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), memberClaims("u1", "Maria Santos"), conversation.ID, "first")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), memberClaims("u2", "Jose Cruz"), conversation.ID, "second")
	require.NoError(t, err)

	history, err := svc.ListMessages(context.Background(), memberClaims("u2", "Jose Cruz"), conversation.ID, 0, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Text)
	assert.Equal(t, "second", history[1].Text)

	_, err = svc.ListMessages(context.Background(), memberClaims("u3", "Ana Reyes"), conversation.ID, 0, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)
}
