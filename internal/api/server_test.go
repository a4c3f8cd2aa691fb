package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/autopilot-dev/autopilot/internal/core"
)

type mockLoader struct {
	state  *core.RoadmapState
	loadErr error
	events []core.AuditEvent
}

func (m *mockLoader) Load(context.Context) (*core.RoadmapState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.state, nil
}

func (m *mockLoader) QueryAudit(context.Context, int64, int) ([]core.AuditEvent, error) {
	return m.events, nil
}

func TestServerHealth(t *testing.T) {
	s := NewServer(&mockLoader{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %q", body["status"])
	}
}

func TestServerRoadmapNotFound(t *testing.T) {
	s := NewServer(&mockLoader{loadErr: context.DeadlineExceeded})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/roadmap", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServerRoadmap(t *testing.T) {
	state := &core.RoadmapState{RoadmapID: "rm-1", Goal: "ship it"}
	s := NewServer(&mockLoader{state: state})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/roadmap", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got core.RoadmapState
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.RoadmapID != state.RoadmapID {
		t.Fatalf("expected roadmap %s, got %s", state.RoadmapID, got.RoadmapID)
	}
}

func TestServerAuditTail(t *testing.T) {
	s := NewServer(&mockLoader{events: []core.AuditEvent{{Seq: 1}, {Seq: 2}}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var events []core.AuditEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}
