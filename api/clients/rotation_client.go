package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/stretchr/testify/mock"

	"github.com/keyfleet/ticket-key-service/api"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

// RotationClient implements api.RotationProvider over HTTP against a
// running rotation server.
type RotationClient struct {
	// ServerAddr is the base URL of the rotation server.
	ServerAddr string

	// HTTPClient overrides http.DefaultClient when set.
	HTTPClient *http.Client
}

func (c *RotationClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Rotate rotates one ring in one region.
func (c *RotationClient) Rotate(region interfaces.Region, req api.RotateRequest) (*api.RotateResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/regions/%s/keys/rotate", c.ServerAddr, region)

	var resp api.RotateResponse
	if err := c.postJSON(endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ring returns a ring's fingerprint summary.
func (c *RotationClient) Ring(region interfaces.Region, keyID interfaces.KeyID) (*api.RingSummary, error) {
	endpoint := fmt.Sprintf("%s/api/v1/regions/%s/keys?key_id=%s",
		c.ServerAddr, region, url.QueryEscape(keyID.String()))

	httpResp, err := c.client().Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not request ring endpoint: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, responseError("ring", httpResp)
	}

	var summary api.RingSummary
	if err := json.NewDecoder(httpResp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("could not parse ring response: %w", err)
	}
	return &summary, nil
}

// Push distributes a ring's newest key to the region's fleet.
func (c *RotationClient) Push(region interfaces.Region, req api.PushRequest) (*api.PushResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/regions/%s/keys/push", c.ServerAddr, region)

	var resp api.PushResponse
	if err := c.postJSON(endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RotationClient) postJSON(endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpResp, err := c.client().Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not request %s: %w", endpoint, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return responseError(endpoint, httpResp)
	}
	return json.NewDecoder(httpResp.Body).Decode(out)
}

func responseError(what string, resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s endpoint returned non-200 response: %d", what, resp.StatusCode)
	}
	var apiErr api.ErrorResponse
	if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s endpoint returned error %d: %s", what, resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("%s endpoint returned error %d: %s", what, resp.StatusCode, string(bodyBytes))
}

// MockRotationProvider implements a mock api.RotationProvider for testing.
type MockRotationProvider struct {
	mock.Mock
}

// Rotate implements the RotationProvider interface for testing.
func (m *MockRotationProvider) Rotate(region interfaces.Region, req api.RotateRequest) (*api.RotateResponse, error) {
	args := m.Called(region, req)
	return args.Get(0).(*api.RotateResponse), args.Error(1)
}

// Ring implements the RotationProvider interface for testing.
func (m *MockRotationProvider) Ring(region interfaces.Region, keyID interfaces.KeyID) (*api.RingSummary, error) {
	args := m.Called(region, keyID)
	return args.Get(0).(*api.RingSummary), args.Error(1)
}

// Push implements the RotationProvider interface for testing.
func (m *MockRotationProvider) Push(region interfaces.Region, req api.PushRequest) (*api.PushResponse, error) {
	args := m.Called(region, req)
	return args.Get(0).(*api.PushResponse), args.Error(1)
}
