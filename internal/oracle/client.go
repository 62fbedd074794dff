package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/t-curity/tcurity-backend/internal/model"
)

// Fallback screen dimensions when the client sends no metadata.
const (
	refScreenWidth  = 1920
	refScreenHeight = 1080
)

const (
	minPhaseAPoints = 3
	minPhaseBPoints = 2
)

const (
	LabelHuman = "human"
	LabelBot   = "bot"
)

// Verdict is the oracle's judgment. Every failure mode of the call
// resolves to a verdict with a reason; the client never surfaces a raw
// transport error to the orchestrator.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
}

// Client wraps the external verification oracle. The failure policy is
// baked per phase: phase A resolves transport failures to a bot verdict
// (fail-closed), phase B to a human verdict (fail-open).
type Client struct {
	baseURL string
	http    *http.Client
}

const DefaultTimeout = 10 * time.Second

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	Points   []model.TracePoint   `json:"points"`
	Metadata model.DeviceMetadata `json:"metadata"`
}

// FilterAndRestorePoints drops malformed or out-of-range points and
// scales normalized coordinates back to pixels for the phase A model.
func FilterAndRestorePoints(points []model.TracePoint, meta model.DeviceMetadata) []model.TracePoint {
	w, h := meta.ScreenWidth, meta.ScreenHeight
	if w <= 0 {
		w = refScreenWidth
	}
	if h <= 0 {
		h = refScreenHeight
	}

	out := make([]model.TracePoint, 0, len(points))
	for _, p := range points {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			continue
		}
		restored := model.TracePoint{
			X:         p.X * float64(w),
			Y:         p.Y * float64(h),
			T:         p.T,
			EventType: p.EventType,
		}
		if restored.EventType == "" {
			restored.EventType = "move"
		}
		out = append(out, restored)
	}
	return out
}

// FilterPoints validates the 0..1 range but keeps coordinates normalized,
// as the phase B model expects.
func FilterPoints(points []model.TracePoint) []model.TracePoint {
	out := make([]model.TracePoint, 0, len(points))
	for _, p := range points {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			continue
		}
		if p.EventType == "" {
			p.EventType = "click"
		}
		out = append(out, p)
	}
	return out
}

// VerifyPhaseA judges a drag trace. Too few valid points is an immediate
// bot verdict without a network call.
func (c *Client) VerifyPhaseA(points []model.TracePoint, meta model.DeviceMetadata) Verdict {
	filtered := FilterAndRestorePoints(points, meta)
	if len(filtered) < minPhaseAPoints {
		return Verdict{Pass: false, Label: LabelBot, Reason: "insufficient_valid_points"}
	}

	req := verifyRequest{
		Points:   filtered,
		Metadata: model.DeviceMetadata{DeviceType: meta.DeviceType},
	}
	verdict, reason := c.post("/phase-a/verify", req)
	if verdict != nil {
		return *verdict
	}
	return Verdict{Pass: false, Label: LabelBot, Reason: reason}
}

// VerifyPhaseB judges selection behavior. Clicks produce few points, so
// a sparse trace passes outright, and transport failures pass as well.
func (c *Client) VerifyPhaseB(points []model.TracePoint, meta model.DeviceMetadata) Verdict {
	filtered := FilterPoints(points)
	if len(filtered) < minPhaseBPoints {
		return Verdict{Pass: true, Label: LabelHuman, Reason: "insufficient_valid_points"}
	}

	req := verifyRequest{Points: filtered, Metadata: meta}
	verdict, reason := c.post("/phase-b/verify", req)
	if verdict != nil {
		return *verdict
	}
	return Verdict{Pass: true, Label: LabelHuman, Reason: reason}
}

// post returns the decoded verdict, or nil plus a reason describing the
// transport failure for the caller's fallback policy.
func (c *Client) post(path string, body verifyRequest) (*Verdict, string) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "oracle_encode_failed"
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		if ue, ok := err.(*url.Error); ok && ue.Timeout() {
			return nil, "oracle_timeout"
		}
		return nil, "oracle_connection_failed"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Sprintf("oracle_error_%d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, "oracle_decode_failed"
	}
	return &verdict, ""
}
