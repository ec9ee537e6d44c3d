package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/halomqtt/internal/device"
)

func historyFixture() []device.StateHistoryEntry {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return []device.StateHistoryEntry{
		{ID: 3, DeviceTag: "halomqtt_4242_3", State: device.LightState{Brightness: 0, Kelvin: 5000}, Source: device.StateSourceCommand, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 2, DeviceTag: "halomqtt_4242_3", State: device.LightState{Brightness: 90, Kelvin: 5000}, Source: device.StateSourceCommand, CreatedAt: base.Add(time.Hour)},
		{ID: 1, DeviceTag: "halomqtt_4242_3", State: device.DefaultLightState(), Source: device.StateSourceAnnounce, CreatedAt: base},
	}
}

type historyResponse struct {
	Tag     string                     `json:"tag"`
	History []device.StateHistoryEntry `json:"history"`
	Count   int                        `json:"count"`
}

func TestGetDeviceHistory(t *testing.T) {
	states := &fakeStates{history: historyFixture()}
	srv := testServer(t, Deps{Location: testLocation(), States: states})

	w := serve(t, srv, "/api/v1/devices/halomqtt_4242_3/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decode[historyResponse](t, w)
	if resp.Tag != "halomqtt_4242_3" || resp.Count != 3 || len(resp.History) != 3 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.History[2].Source != device.StateSourceAnnounce {
		t.Errorf("oldest source = %q, want announce", resp.History[2].Source)
	}
	if states.lastLimit != defaultHistoryLimit {
		t.Errorf("limit passed = %d, want %d", states.lastLimit, defaultHistoryLimit)
	}
}

func TestGetDeviceHistory_LimitAndSince(t *testing.T) {
	states := &fakeStates{history: historyFixture()}
	srv := testServer(t, Deps{Location: testLocation(), States: states})

	w := serve(t, srv, "/api/v1/devices/halomqtt_4242_3/history?limit=2")
	if resp := decode[historyResponse](t, w); resp.Count != 2 || states.lastLimit != 2 {
		t.Errorf("limit=2: count = %d, limit passed = %d", resp.Count, states.lastLimit)
	}

	states.history = historyFixture()
	w = serve(t, srv, "/api/v1/devices/halomqtt_4242_3/history?since=2026-05-01T10:30:00Z")
	resp := decode[historyResponse](t, w)
	if resp.Count != 2 {
		t.Fatalf("since: count = %d, want 2", resp.Count)
	}
	for _, e := range resp.History {
		if e.ID == 1 {
			t.Error("entry older than since was returned")
		}
	}
}

func TestGetDeviceHistory_Empty(t *testing.T) {
	srv := testServer(t, Deps{Location: testLocation()})

	w := serve(t, srv, "/api/v1/devices/halomqtt_4242_7/history")
	resp := decode[map[string]any](t, w)
	if h, ok := resp["history"].([]any); !ok || len(h) != 0 {
		t.Errorf("history = %v, want empty array", resp["history"])
	}
}

func TestGetDeviceHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		historyErr error
		wantStatus int
	}{
		{"zero limit", "/api/v1/devices/halomqtt_4242_3/history?limit=0", nil, http.StatusBadRequest},
		{"text limit", "/api/v1/devices/halomqtt_4242_3/history?limit=abc", nil, http.StatusBadRequest},
		{"limit too large", "/api/v1/devices/halomqtt_4242_3/history?limit=500", nil, http.StatusBadRequest},
		{"bad since", "/api/v1/devices/halomqtt_4242_3/history?since=yesterday", nil, http.StatusBadRequest},
		{"unknown tag", "/api/v1/devices/halomqtt_4242_9/history", nil, http.StatusNotFound},
		{"store failure", "/api/v1/devices/halomqtt_4242_3/history", errors.New("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := &fakeStates{history: historyFixture(), historyErr: tt.historyErr}
			srv := testServer(t, Deps{Location: testLocation(), States: states})

			w := serve(t, srv, tt.path)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestParseHistoryLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultHistoryLimit, false},
		{"1", 1, false},
		{"200", 200, false},
		{"201", 0, true},
		{"-1", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseHistoryLimit(tt.raw)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("parseHistoryLimit(%q) = %d, %v", tt.raw, got, err)
			}
		})
	}
}
