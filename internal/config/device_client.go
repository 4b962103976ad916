package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrDeviceNotFound means the device-config service has no record of this
// device at all — distinct from ErrDeviceNeedsBinding, where the device is
// known but not yet paired to an account.
var ErrDeviceNotFound = errors.New("config: device not found")

// ErrDeviceNeedsBinding means the device must complete the bind flow
// before a private config overlay is available. BindCode carries the
// short code the user reads aloud / enters to complete binding.
type ErrDeviceNeedsBinding struct {
	BindCode string
}

func (e *ErrDeviceNeedsBinding) Error() string {
	return fmt.Sprintf("config: device needs binding (code %s)", e.BindCode)
}

// PrivateConfig is the per-device overlay returned by the external
// device-config service: which modules this device should use and their
// settings, on top of (or instead of) the server-wide defaults.
type PrivateConfig struct {
	SelectedModule map[string]string        `json:"selected_module"`
	Modules        map[string]ModuleConfig  `json:"modules"`
}

// DeviceConfigClient fetches a device's private config over HTTP. The
// transport choice is plain net/http — justified in DESIGN.md, since this
// is a single small JSON GET against a service we do not otherwise talk to.
type DeviceConfigClient struct {
	baseURL string
	http    *http.Client
}

// NewDeviceConfigClient creates a client against baseURL.
func NewDeviceConfigClient(baseURL string) *DeviceConfigClient {
	return &DeviceConfigClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type deviceConfigResponse struct {
	NeedBind bool          `json:"need_bind"`
	BindCode string        `json:"bind_code"`
	Config   PrivateConfig `json:"config"`
}

// Fetch retrieves the private config for deviceID. Returns
// *ErrDeviceNeedsBinding if the device is known but unpaired, or
// ErrDeviceNotFound if the device is unrecognized entirely.
func (c *DeviceConfigClient) Fetch(ctx context.Context, deviceID string) (*PrivateConfig, error) {
	url := fmt.Sprintf("%s/devices/%s/config", c.baseURL, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("config: build device config request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config: fetch device config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrDeviceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config: device config service returned %d", resp.StatusCode)
	}

	var body deviceConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("config: decode device config response: %w", err)
	}

	if body.NeedBind {
		return nil, &ErrDeviceNeedsBinding{BindCode: body.BindCode}
	}

	return &body.Config, nil
}
