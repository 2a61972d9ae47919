// Package device wraps the Google Nest Smart Device Management API behind
// the two narrow capabilities the engine needs: set a heating target and
// read the ambient temperature.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://smartdevicemanagement.googleapis.com/v1"
	requestTimeout = 15 * time.Second

	setHeatCommand = "sdm.devices.commands.ThermostatTemperatureSetpoint.SetHeat"
	ambientTrait   = "sdm.devices.traits.Temperature"
)

// Config identifies the single managed thermostat. The original deployment
// controls one device; the account parameter on calls is kept so a
// per-account device registry can slot in without touching the engine.
type Config struct {
	DeviceName  string // full SDM resource name
	AccessToken string
	BaseURL     string // override for tests
}

type NestClient struct {
	cfg   Config
	httpc *http.Client
}

func NewNestClient(cfg Config) *NestClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &NestClient{
		cfg:   cfg,
		httpc: &http.Client{Timeout: requestTimeout},
	}
}

// SetTargetC sets the heating setpoint in °C.
func (c *NestClient) SetTargetC(ctx context.Context, accountID int, celsius float64) error {
	payload := map[string]any{
		"command": setHeatCommand,
		"params":  map[string]any{"heatCelsius": celsius},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/%s:executeCommand", c.cfg.BaseURL, c.cfg.DeviceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("set thermostat target: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("set thermostat target: device API status %d", resp.StatusCode)
	}
	return nil
}

// AmbientC reads the device's current ambient temperature in °C.
func (c *NestClient) AmbientC(ctx context.Context, accountID int) (float64, error) {
	u := fmt.Sprintf("%s/%s", c.cfg.BaseURL, c.cfg.DeviceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("read ambient temperature: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("read ambient temperature: device API status %d", resp.StatusCode)
	}

	var body struct {
		Traits map[string]struct {
			AmbientTemperatureCelsius float64 `json:"ambientTemperatureCelsius"`
		} `json:"traits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode device response: %w", err)
	}
	trait, ok := body.Traits[ambientTrait]
	if !ok {
		return 0, fmt.Errorf("read ambient temperature: trait %s missing", ambientTrait)
	}
	return trait.AmbientTemperatureCelsius, nil
}
