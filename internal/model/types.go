package model

import (
	"encoding/json"
	"errors"
)

// Status is the closed set of session states. It only ever changes through
// the store's SetStatus, which consults the state transition table.
type Status string

const (
	StatusInit      Status = "INIT"
	StatusPhaseA    Status = "PHASE_A"
	StatusPhaseB    Status = "PHASE_B"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInit, StatusPhaseA, StatusPhaseB, StatusCompleted:
		return true
	}
	return false
}

// TracePoint is one sample of an interaction trace. Coordinates are
// normalized to 0..1 on the wire; timestamps are milliseconds.
type TracePoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	T         float64 `json:"t"`
	EventType string  `json:"eventType,omitempty"`
}

// UnmarshalJSON accepts both wire forms: [x, y, t] / [x, y, t, eventType]
// and {"x":..,"y":..,"t":..,"eventType":..}.
func (p *TracePoint) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) < 3 {
			return errors.New("trace point needs at least x, y, t")
		}
		if err := json.Unmarshal(arr[0], &p.X); err != nil {
			return err
		}
		if err := json.Unmarshal(arr[1], &p.Y); err != nil {
			return err
		}
		if err := json.Unmarshal(arr[2], &p.T); err != nil {
			return err
		}
		if len(arr) > 3 {
			if err := json.Unmarshal(arr[3], &p.EventType); err != nil {
				return err
			}
		}
		return nil
	}

	type objectForm struct {
		X         *float64 `json:"x"`
		Y         *float64 `json:"y"`
		T         *float64 `json:"t"`
		EventType string   `json:"eventType"`
		EventAlt  string   `json:"event_type"`
	}
	var obj objectForm
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.X == nil || obj.Y == nil || obj.T == nil {
		return errors.New("trace point needs x, y, t")
	}
	p.X, p.Y, p.T = *obj.X, *obj.Y, *obj.T
	p.EventType = obj.EventType
	if p.EventType == "" {
		p.EventType = obj.EventAlt
	}
	return nil
}

// DeviceMetadata accompanies an interaction trace.
type DeviceMetadata struct {
	ScreenWidth  int    `json:"screenWidth,omitempty"`
	ScreenHeight int    `json:"screenHeight,omitempty"`
	DeviceType   string `json:"deviceType,omitempty"`
}

// BehaviorData is the behavior_pattern_data submission field. The wire
// accepts either a bare point list or {"points": [...], "metadata": {...}}.
type BehaviorData struct {
	Points   []TracePoint   `json:"points"`
	Metadata DeviceMetadata `json:"metadata"`
}

func (b *BehaviorData) UnmarshalJSON(data []byte) error {
	var points []TracePoint
	if err := json.Unmarshal(data, &points); err == nil {
		b.Points = points
		b.Metadata = DeviceMetadata{}
		return nil
	}

	type wrapped struct {
		Points   []TracePoint   `json:"points"`
		Metadata DeviceMetadata `json:"metadata"`
	}
	var w wrapped
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.Points = w.Points
	b.Metadata = w.Metadata
	return nil
}

// PhaseAState is the server-side phase A record. TargetPath is private
// ground truth and is never serialized into a client payload.
type PhaseAState struct {
	TargetPath []TracePoint
	Attempts   int
}

// PhaseBState is the server-side phase B record. CorrectAnswer holds the
// image ids the client must select; it is replaced atomically together
// with IssuedAt on every issuance.
type PhaseBState struct {
	CorrectAnswer []string
	FailCount     int
	IssuedAt      int64
}

// Session is the central entity. Timestamps are unix milliseconds.
type Session struct {
	ID        string
	ClientID  string
	Status    Status
	CreatedAt int64
	ExpiresAt int64
	PhaseA    PhaseAState
	PhaseB    PhaseBState
}

// PhaseAPatch updates phase A fields only; nil fields are left untouched.
type PhaseAPatch struct {
	TargetPath *[]TracePoint
	Attempts   *int
}

// PhaseBPatch updates phase B fields only; nil fields are left untouched.
// CorrectAnswer and IssuedAt must be set together on issuance.
type PhaseBPatch struct {
	CorrectAnswer *[]string
	FailCount     *int
	IssuedAt      *int64
}
