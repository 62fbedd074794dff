package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/t-curity/tcurity-backend/internal/hub"
	"github.com/t-curity/tcurity-backend/internal/verify"
)

const sessionHeader = "X-Session-Id"

// CaptchaHandler serves the challenge lifecycle endpoints.
type CaptchaHandler struct {
	Orchestrator *verify.Orchestrator
	Hub          *hub.Hub
}

func NewCaptchaHandler(orch *verify.Orchestrator, h *hub.Hub) *CaptchaHandler {
	return &CaptchaHandler{Orchestrator: orch, Hub: h}
}

// Request issues (or reissues) the phase A challenge for the session
// named in the X-Session-Id header.
func (h *CaptchaHandler) Request(c *gin.Context) {
	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" {
		writeInvalidPayload(c, "missing "+sessionHeader+" header")
		return
	}

	res := h.Orchestrator.RequestPhaseA(sessionID)
	publishIssue(h.Hub, res)
	writeResult(c, res)
}

// Submit evaluates a phase submission. The session's current status,
// not the payload shape, decides which phase handles it.
func (h *CaptchaHandler) Submit(c *gin.Context) {
	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" {
		writeInvalidPayload(c, "missing "+sessionHeader+" header")
		return
	}

	var sub verify.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		writeInvalidPayload(c, "malformed submission body")
		return
	}

	res := h.Orchestrator.Submit(sessionID, sub)
	publishSubmitResult(h.Hub, res)
	writeResult(c, res)
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
}

// Verify is the read-only completion check used by relying services.
func (h *CaptchaHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		writeInvalidPayload(c, "missing session_id")
		return
	}

	res := h.Orchestrator.VerifyCompleted(req.SessionID)
	writeResult(c, res)
}
