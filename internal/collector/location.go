package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// Location is a geolocation fix. All fields are nil on failure; the
// collector never estimates position.
type Location struct {
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
	Accuracy  *float64
}

// LocationProvider resolves the device's current location
type LocationProvider interface {
	GetLocation(ctx context.Context) (*Location, error)
}

// HTTPLocationProvider resolves location from an IP geolocation JSON API
type HTTPLocationProvider struct {
	url    string
	client *http.Client
	logger *utils.LogsManager
}

// NewHTTPLocationProvider creates the default provider from config
func NewHTTPLocationProvider(config *utils.ConfigManager, logger *utils.LogsManager) *HTTPLocationProvider {
	url := "https://ipapi.co/json/"
	timeout := 10 * time.Second
	if config != nil {
		url = config.GetConfigWithDefault("location_api_url", url)
		timeout = config.GetConfigDuration("location_timeout", timeout)
	}

	return &HTTPLocationProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type geoResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Accuracy  *float64 `json:"accuracy"`
}

// GetLocation performs a single fetch against the geolocation endpoint
func (p *HTTPLocationProvider) GetLocation(ctx context.Context) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("location request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("location API returned status %d", resp.StatusCode)
	}

	var geo geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return nil, fmt.Errorf("failed to decode location response: %v", err)
	}

	return &Location{
		Latitude:  geo.Latitude,
		Longitude: geo.Longitude,
		Altitude:  geo.Altitude,
		Accuracy:  geo.Accuracy,
	}, nil
}
