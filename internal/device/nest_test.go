package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNestClient_SetTargetC(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/enterprises/e1/devices/d1:executeCommand" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewNestClient(Config{
		DeviceName:  "enterprises/e1/devices/d1",
		AccessToken: "tok",
		BaseURL:     srv.URL,
	})
	if err := c.SetTargetC(context.Background(), 1, 21.5); err != nil {
		t.Fatalf("SetTargetC: %v", err)
	}

	if gotBody["command"] != "sdm.devices.commands.ThermostatTemperatureSetpoint.SetHeat" {
		t.Errorf("unexpected command: %v", gotBody["command"])
	}
	params := gotBody["params"].(map[string]any)
	if params["heatCelsius"] != 21.5 {
		t.Errorf("unexpected setpoint: %v", params["heatCelsius"])
	}
}

func TestNestClient_AmbientC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"traits":{"sdm.devices.traits.Temperature":{"ambientTemperatureCelsius":19.8}}}`))
	}))
	defer srv.Close()

	c := NewNestClient(Config{DeviceName: "enterprises/e1/devices/d1", BaseURL: srv.URL})
	got, err := c.AmbientC(context.Background(), 1)
	if err != nil {
		t.Fatalf("AmbientC: %v", err)
	}
	if got != 19.8 {
		t.Fatalf("expected 19.8, got %v", got)
	}
}

func TestNestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewNestClient(Config{DeviceName: "d", BaseURL: srv.URL})
	if err := c.SetTargetC(context.Background(), 1, 21); err == nil {
		t.Fatal("expected error for non-200 on executeCommand")
	}
	if _, err := c.AmbientC(context.Background(), 1); err == nil {
		t.Fatal("expected error for non-200 on device read")
	}
}
