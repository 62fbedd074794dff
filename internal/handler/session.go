package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/t-curity/tcurity-backend/internal/hub"
	"github.com/t-curity/tcurity-backend/internal/middleware"
	"github.com/t-curity/tcurity-backend/internal/model"
	"github.com/t-curity/tcurity-backend/internal/store"
)

// SessionHandler serves session lifecycle endpoints.
type SessionHandler struct {
	Store *store.Store
	Hub   *hub.Hub
	Now   func() int64
}

func NewSessionHandler(s *store.Store, h *hub.Hub) *SessionHandler {
	return &SessionHandler{
		Store: s,
		Hub:   h,
		Now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// Init creates a fresh session bound to the admitted client.
func (h *SessionHandler) Init(c *gin.Context) {
	clientID, ok := middleware.ClientIDFromContext(c)
	if !ok {
		// RequireClientID runs ahead of this handler; reaching here
		// without a client id is a routing mistake.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "client not admitted"})
		return
	}

	now := h.Now()
	sess, err := h.Store.Create(clientID, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.Hub != nil {
		h.Hub.Publish(clientID, hub.Event{
			Type:      hub.EventSessionCreated,
			SessionID: sess.ID,
			Status:    string(model.StatusInit),
			At:        now,
		})
	}

	c.JSON(http.StatusOK, response{
		Status:  string(sess.Status),
		Success: true,
		Data: gin.H{
			"session_id": sess.ID,
			"expires_in": int64(h.Store.TTL().Seconds()),
		},
		Message: "session created",
	})
}
