// Package pos talks to the external point-of-sale marketplace where seat
// packs are listed for resale. The engine never assumes synchronous
// consistency with the vendor: every call can fail independently of the
// database and is retried later by the sweep.
package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrVendorUnavailable wraps transport-level failures against the vendor API.
var ErrVendorUnavailable = errors.New("pos vendor unavailable")

// InventoryPayload is the vendor-facing shape of one seat pack listing.
type InventoryPayload struct {
	ExternalID  string  `json:"externalId"`
	EventName   string  `json:"eventName"`
	VenueName   string  `json:"venueName"`
	Section     string  `json:"section,omitempty"`
	Row         string  `json:"row"`
	SeatStart   string  `json:"seatStart"`
	SeatEnd     string  `json:"seatEnd"`
	TicketCount int     `json:"ticketCount"`
	UnitCost    float64 `json:"unitCost"`
}

// Client is the opaque external capability the pusher depends on.
type Client interface {
	// CreateListing pushes one pack and returns the vendor inventory id.
	CreateListing(ctx context.Context, payload InventoryPayload) (string, error)
	// DeleteListing removes a vendor listing. A listing that is already gone
	// is treated as a successful delete.
	DeleteListing(ctx context.Context, inventoryID string) error
}

type httpClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewHTTPClient builds the production vendor client. Every call carries a
// bearer token and is bounded by timeout.
func NewHTTPClient(baseURL, authToken string, timeout time.Duration) Client {
	return &httpClient{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
	}
}

type createResponse struct {
	ID json.RawMessage `json:"id"`
}

// inventoryIDString renders the vendor id losslessly whether it arrives as a
// JSON string or a number. Decoding a number into an interface value would go
// through float64 and mangle ids past float precision.
func inventoryIDString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unexpected inventory id %s", string(raw))
	}
	return n.String(), nil
}

func (c *httpClient) CreateListing(ctx context.Context, payload InventoryPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal inventory payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inventory/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create listing: HTTP %d: %s", resp.StatusCode, string(data))
	}

	var out createResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if len(out.ID) == 0 {
		return "", errors.New("create listing: response carried no inventory id")
	}
	id, err := inventoryIDString(out.ID)
	if err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if id == "" {
		return "", errors.New("create listing: response carried no inventory id")
	}
	return id, nil
}

func (c *httpClient) DeleteListing(ctx context.Context, inventoryID string) error {
	if inventoryID == "" {
		return errors.New("delete listing: inventory id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/inventory/"+inventoryID, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		// Already deleted on the vendor side, the end state is reached.
		return nil
	default:
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete listing %s: HTTP %d: %s", inventoryID, resp.StatusCode, string(data))
	}
}
