package model

import (
	"encoding/json"
	"testing"
)

func TestTracePoint_ArrayForm(t *testing.T) {
	var p TracePoint
	if err := json.Unmarshal([]byte(`[0.25, 0.75, 120]`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.X != 0.25 || p.Y != 0.75 || p.T != 120 || p.EventType != "" {
		t.Fatalf("unexpected point: %+v", p)
	}

	if err := json.Unmarshal([]byte(`[0.25, 0.75, 120, "move"]`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.EventType != "move" {
		t.Fatalf("expected event type move, got %q", p.EventType)
	}

	if err := json.Unmarshal([]byte(`[0.25, 0.75]`), &p); err == nil {
		t.Fatalf("expected error for short array")
	}
}

func TestTracePoint_ObjectForm(t *testing.T) {
	var p TracePoint
	if err := json.Unmarshal([]byte(`{"x":0.1,"y":0.2,"t":30,"eventType":"down"}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.X != 0.1 || p.Y != 0.2 || p.T != 30 || p.EventType != "down" {
		t.Fatalf("unexpected point: %+v", p)
	}

	// snake_case alias
	if err := json.Unmarshal([]byte(`{"x":0.1,"y":0.2,"t":30,"event_type":"up"}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.EventType != "up" {
		t.Fatalf("expected alias to fill event type, got %q", p.EventType)
	}

	if err := json.Unmarshal([]byte(`{"x":0.1,"y":0.2}`), &p); err == nil {
		t.Fatalf("expected error for missing t")
	}
}

func TestBehaviorData_BothForms(t *testing.T) {
	var bare BehaviorData
	if err := json.Unmarshal([]byte(`[[0.1,0.2,0],{"x":0.3,"y":0.4,"t":50}]`), &bare); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(bare.Points) != 2 || bare.Points[1].X != 0.3 {
		t.Fatalf("unexpected bare list decode: %+v", bare)
	}

	var wrapped BehaviorData
	raw := `{"points":[[0.1,0.2,0]],"metadata":{"screenWidth":1280,"screenHeight":720}}`
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(wrapped.Points) != 1 || wrapped.Metadata.ScreenWidth != 1280 {
		t.Fatalf("unexpected wrapped decode: %+v", wrapped)
	}
}
