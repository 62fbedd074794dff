package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/t-curity/tcurity-backend/internal/hub"
	"github.com/t-curity/tcurity-backend/internal/model"
	"github.com/t-curity/tcurity-backend/internal/verify"
)

// response is the uniform envelope of every captcha endpoint. Business
// failures ride in the body; the transport status stays 200 so that
// verification outcomes never leak through infrastructure codes.
type response struct {
	Status  string            `json:"status,omitempty"`
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   *verify.ErrorInfo `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
}

func writeResult(c *gin.Context, res verify.Result) {
	resp := response{
		Status:  string(res.Status),
		Success: res.Success,
		Error:   res.Err,
		Message: res.Message,
	}

	data := gin.H{}
	if res.Problem != nil {
		data["problem"] = res.Problem
	}
	if res.Token != "" {
		data["verification_token"] = res.Token
	}
	if len(data) > 0 {
		resp.Data = data
	}

	c.JSON(http.StatusOK, resp)
}

func writeInvalidPayload(c *gin.Context, message string) {
	c.JSON(http.StatusOK, response{
		Success: false,
		Error:   &verify.ErrorInfo{Code: verify.CodeInvalidPayload, Message: message},
	})
}

// publishIssue reports a phase A issuance on the monitoring feed.
func publishIssue(h *hub.Hub, res verify.Result) {
	if h == nil || res.ClientID == "" || !res.Success {
		return
	}
	h.Publish(res.ClientID, hub.Event{
		Type:      hub.EventChallengeIssued,
		SessionID: res.SessionID,
		Status:    string(res.Status),
		At:        time.Now().UnixMilli(),
	})
}

// publishSubmitResult maps a submission outcome onto the feed: phase
// advances become state-transition events, completion gets its own
// event, and verification failures carry their error code.
func publishSubmitResult(h *hub.Hub, res verify.Result) {
	if h == nil || res.ClientID == "" {
		return
	}

	at := time.Now().UnixMilli()
	switch {
	case res.Success && res.Status == model.StatusCompleted:
		h.Publish(res.ClientID, hub.Event{
			Type: hub.EventVerifyCompleted, SessionID: res.SessionID, Status: string(res.Status), At: at,
		})
	case res.Success:
		h.Publish(res.ClientID, hub.Event{
			Type: hub.EventStateTransition, SessionID: res.SessionID, Status: string(res.Status), At: at,
		})
	case res.Err != nil && isVerificationFailure(res.Err.Code):
		h.Publish(res.ClientID, hub.Event{
			Type: hub.EventVerifyFailed, SessionID: res.SessionID, Status: string(res.Status), Code: res.Err.Code, At: at,
		})
	}
}

func isVerificationFailure(code string) bool {
	switch code {
	case verify.CodeLowConfidenceBehavior, verify.CodeWrongAnswer,
		verify.CodeTimeLimitExceeded, verify.CodeAnomalousBehavior:
		return true
	}
	return false
}
