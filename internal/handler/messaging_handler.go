package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/response"
)

type messagingService interface {
	StartDirect(ctx context.Context, claims *models.JWTClaims, targetUserID string) (*models.Conversation, error)
	CreateGroup(ctx context.Context, claims *models.JWTClaims, name string, participantUIDs []string) (*models.Conversation, error)
	Send(ctx context.Context, claims *models.JWTClaims, conversationID, text string) (*models.Message, error)
	ListConversations(ctx context.Context, claims *models.JWTClaims) ([]models.Conversation, error)
	ListMessages(ctx context.Context, claims *models.JWTClaims, conversationID string, limit int, before *time.Time) ([]models.Message, error)
}

// MessagingHandler exposes REST endpoints for conversations and messages.
type MessagingHandler struct {
	service messagingService
}

// NewMessagingHandler constructs the handler.
func NewMessagingHandler(service messagingService) *MessagingHandler {
	return &MessagingHandler{service: service}
}

// StartDirect godoc
// @Summary Find or create a 1:1 conversation
// @Tags Messaging
// @Accept json
// @Produce json
// @Param payload body dto.StartDirectConversationRequest true "Target user"
// @Success 200 {object} response.Envelope
// @Router /conversations/direct [post]
func (h *MessagingHandler) StartDirect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.StartDirectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid conversation payload"))
		return
	}
	conversation, err := h.service.StartDirect(c.Request.Context(), claims, req.TargetUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conversation, nil)
}

// CreateGroup godoc
// @Summary Create a named group conversation
// @Tags Messaging
// @Accept json
// @Produce json
// @Param payload body dto.CreateGroupConversationRequest true "Group details"
// @Success 201 {object} response.Envelope
// @Router /conversations/group [post]
func (h *MessagingHandler) CreateGroup(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateGroupConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group payload"))
		return
	}
	conversation, err := h.service.CreateGroup(c.Request.Context(), claims, req.Name, req.ParticipantUIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, conversation, nil)
}

// List godoc
// @Summary List the caller's conversations
// @Tags Messaging
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conversations [get]
func (h *MessagingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	conversations, err := h.service.ListConversations(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conversations, nil)
}

// Send godoc
// @Summary Send a message to a conversation
// @Tags Messaging
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param payload body dto.SendMessageRequest true "Message body"
// @Success 201 {object} response.Envelope
// @Router /conversations/{id}/messages [post]
func (h *MessagingHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid message payload"))
		return
	}
	message, err := h.service.Send(c.Request.Context(), claims, c.Param("id"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, message, nil)
}

// Messages godoc
// @Summary List message history in ascending send order
// @Tags Messaging
// @Produce json
// @Param id path string true "Conversation ID"
// @Param limit query int false "Page size"
// @Param before query string false "RFC3339 timestamp; only earlier messages"
// @Success 200 {object} response.Envelope
// @Router /conversations/{id}/messages [get]
func (h *MessagingHandler) Messages(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "before must be an RFC3339 timestamp"))
			return
		}
		before = &parsed
	}

	messages, err := h.service.ListMessages(c.Request.Context(), claims, c.Param("id"), limit, before)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}
