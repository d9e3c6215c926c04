package handler

import (
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"github.com/campusconnect/campusconnect-api/internal/ws"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/response"
)

// WSHandler upgrades authenticated connections and attaches them to the hub.
type WSHandler struct {
	hub            *ws.Hub
	allowAnyOrigin bool
}

// NewWSHandler constructs the handler.
func NewWSHandler(hub *ws.Hub, allowAnyOrigin bool) *WSHandler {
	return &WSHandler{hub: hub, allowAnyOrigin: allowAnyOrigin}
}

// Connect godoc
// @Summary Open the real-time event stream
// @Tags Messaging
// @Param token query string true "Access token"
// @Success 101
// @Router /ws [get]
func (h *WSHandler) Connect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: h.allowAnyOrigin,
	})
	if err != nil {
		return
	}

	ctx := c.Request.Context()
	client := h.hub.AddClient(ctx, claims.UserID, conn)
	defer h.hub.RemoveClient(client)

	// Push only: reading just observes close/errors from the peer.
	readCtx := conn.CloseRead(ctx)
	<-readCtx.Done()
	conn.Close(websocket.StatusNormalClosure, "")
}
