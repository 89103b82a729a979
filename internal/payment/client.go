package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// LineItemLister is the slice of the processor API the fulfillment
// pipeline needs.
type LineItemLister interface {
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type lineItemPage struct {
	Data    []LineItem `json:"data"`
	HasMore bool       `json:"has_more"`
}

// ListLineItems follows pagination cursors until exhausted. Metadata is
// expanded server-side via the expand parameter.
func (c *Client) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	var out []LineItem
	startingAfter := ""
	for {
		q := url.Values{}
		q.Set("limit", "100")
		q.Set("expand[]", "data.metadata")
		if startingAfter != "" {
			q.Set("starting_after", startingAfter)
		}
		u := fmt.Sprintf("%s/v1/sessions/%s/line_items?%s", c.baseURL, url.PathEscape(sessionID), q.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list line items: %w", err)
		}
		var page lineItemPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("list line items: status %d", resp.StatusCode)
		}
		if err != nil {
			return nil, fmt.Errorf("list line items: %w", err)
		}

		out = append(out, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return out, nil
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
}
