package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thermostat_away"
	"thermostat_away/internal/service"
)

func doAuthed(r http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer valid")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOverrideHandler_Success(t *testing.T) {
	end := time.Now().UTC().Add(2 * time.Hour)
	th := &mockThermostat{overrideState: thermostat_away.ThermostatState{
		AccountID:      5,
		Away:           true,
		OverrideActive: true,
		ScheduledEnd:   &end,
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 5}, Thermostat: th}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodPost, "/api/v1/thermostat/override", `{"away":true,"hours":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if th.overrideCalls != 1 || th.lastAccountID != 5 || !th.lastAway || th.lastHours != 2 {
		t.Fatalf("unexpected call: %+v", th)
	}

	var out struct {
		Status string                          `json:"status"`
		State  thermostat_away.ThermostatState `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status != "ok" || !out.State.OverrideActive {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestOverrideHandler_Errors(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		svcErr   error
		wantCode int
	}{
		{"missing hours", `{"away":true}`, nil, http.StatusBadRequest},
		{"malformed body", `{"away":`, nil, http.StatusBadRequest},
		{"negative duration", `{"away":true,"hours":-1}`, service.ErrInvalidDuration, http.StatusBadRequest},
		{"unknown account", `{"away":true,"hours":1}`, fmt.Errorf("%w: account 5", service.ErrAccountNotFound), http.StatusNotFound},
		{"storage failure", `{"away":true,"hours":1}`, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			th := &mockThermostat{overrideErr: tc.svcErr}
			s := &service.Service{Authorization: &mockAuth{parseID: 5}, Thermostat: th}
			r := newTestRouter(s)

			w := doAuthed(r, http.MethodPost, "/api/v1/thermostat/override", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d; body=%s", w.Code, tc.wantCode, w.Body.String())
			}
		})
	}
}

func TestSyncHandler(t *testing.T) {
	th := &mockThermostat{syncResult: service.SyncResult{
		Away:           true,
		Message:        "Nest set to outside temp - 58.3. The next event will end on 2026-08-29T18:00:00Z.",
		EnergySavedKWh: 20,
		CostSaved:      3,
	}}
	s := &service.Service{Authorization: &mockAuth{parseID: 9}, Thermostat: th}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodGet, "/api/v1/thermostat/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out service.SyncResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Away || out.EnergySavedKWh != 20 {
		t.Fatalf("unexpected result: %+v", out)
	}
	if th.lastAccountID != 9 {
		t.Fatalf("expected account 9, got %d", th.lastAccountID)
	}
}

func TestSyncHandler_UpstreamFailureIsBadGateway(t *testing.T) {
	th := &mockThermostat{syncErr: errors.New("calendar sync: upstream 503")}
	s := &service.Service{Authorization: &mockAuth{parseID: 9}, Thermostat: th}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodGet, "/api/v1/thermostat/sync", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502; body=%s", w.Code, w.Body.String())
	}
}

func TestStateHandler(t *testing.T) {
	mon := &mockMonitoring{state: thermostat_away.ThermostatState{AccountID: 3, Away: true}}
	s := &service.Service{Authorization: &mockAuth{parseID: 3}, Monitoring: mon}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodGet, "/api/v1/thermostat/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st thermostat_away.ThermostatState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !st.Away || st.AccountID != 3 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if mon.lastAccountID != 3 {
		t.Fatalf("expected account 3, got %d", mon.lastAccountID)
	}
}

func TestStateHandler_UnknownAccount(t *testing.T) {
	mon := &mockMonitoring{err: fmt.Errorf("%w: account 3", service.ErrAccountNotFound)}
	s := &service.Service{Authorization: &mockAuth{parseID: 3}, Monitoring: mon}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodGet, "/api/v1/thermostat/state", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404; body=%s", w.Code, w.Body.String())
	}
}

func TestSavingsHandlers(t *testing.T) {
	th := &mockThermostat{energy: 42.5, cost: 6.375}
	s := &service.Service{Authorization: &mockAuth{parseID: 4}, Thermostat: th}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodGet, "/api/v1/thermostat/energy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("energy status=%d, body=%s", w.Code, w.Body.String())
	}
	var em map[string]float64
	_ = json.Unmarshal(w.Body.Bytes(), &em)
	if em["energy_saved_kwh"] != 42.5 {
		t.Fatalf("unexpected energy payload: %v", em)
	}

	w = doAuthed(r, http.MethodGet, "/api/v1/thermostat/cost", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cost status=%d, body=%s", w.Code, w.Body.String())
	}
	var cm map[string]float64
	_ = json.Unmarshal(w.Body.Bytes(), &cm)
	if cm["cost_saved"] != 6.375 {
		t.Fatalf("unexpected cost payload: %v", cm)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{}}
	r := newTestRouter(s)

	for _, target := range []string{
		"/api/v1/thermostat/state",
		"/api/v1/thermostat/sync",
		"/api/v1/thermostat/energy",
		"/api/v1/thermostat/cost",
		"/api/v1/logs/",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status=%d, want 401", target, w.Code)
		}
	}
}
