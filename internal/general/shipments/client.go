package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/config"
	"rider-tracking/internal/general/contracts"
)

const maxBody = 1 << 20

// Client reads pending stops from the shipment-listing service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for cfg.Shipments.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.Shipments.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Shipments.Timeout},
	}
}

// PendingStops returns the stops still to be visited by employeeID in the order the service lists them.
// Entries with an invalid position are skipped. An unconfigured client has no stops.
func (c *Client) PendingStops(ctx context.Context, employeeID string) ([]route.Stop, error) {
	if c.baseURL == "" {
		return []route.Stop{}, nil
	}

	endpoint := c.baseURL + "/shipments/pending?employee_id=" + url.QueryEscape(employeeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build pending shipments request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending shipments: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from shipment service", resp.StatusCode)
	}

	var pending []contracts.PendingShipment
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&pending); err != nil {
		return nil, fmt.Errorf("decode pending shipments: %w", err)
	}

	stops := make([]route.Stop, 0, len(pending))
	for _, p := range pending {
		pos, err := geo.NewPoint(p.Latitude, p.Longitude)
		if err != nil || strings.TrimSpace(p.ShipmentID) == "" {
			continue
		}
		stops = append(stops, route.Stop{ShipmentID: p.ShipmentID, Position: pos, Address: p.Address})
	}
	return stops, nil
}

