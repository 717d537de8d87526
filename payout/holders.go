package payout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// snapshotPageSize is the page size requested from the holder indexer.
const snapshotPageSize = 100

// SnapshotClient fetches collection holder snapshots from a paginated
// indexer API.
type SnapshotClient struct {
	baseURL string
	client  *http.Client
}

// NewSnapshotClient creates a client for the holder indexer at baseURL
// (without a trailing slash). A zero timeout defaults to 30 seconds.
func NewSnapshotClient(baseURL string, timeout time.Duration) *SnapshotClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SnapshotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// snapshotPage mirrors one page of the holders endpoint.
type snapshotPage struct {
	Holders []Holder `json:"holders"`
	Total   int      `json:"total"`
}

// Holders pages through the indexer until the full snapshot for the
// collection is assembled.
func (c *SnapshotClient) Holders(ctx context.Context, collectionID string) ([]Holder, error) {
	var all []Holder
	for offset := 0; ; offset += snapshotPageSize {
		page, err := c.page(ctx, collectionID, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Holders...)

		if len(page.Holders) < snapshotPageSize {
			break
		}
		if page.Total > 0 && len(all) >= page.Total {
			break
		}
	}
	return all, nil
}

func (c *SnapshotClient) page(ctx context.Context, collectionID string, offset int) (*snapshotPage, error) {
	url := fmt.Sprintf("%s/collections/%s/holders?offset=%d&limit=%d",
		c.baseURL, collectionID, offset, snapshotPageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("payout: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrInvalidSnapshot, resp.StatusCode)
	}

	var page snapshotPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode page at offset %d: %w", ErrInvalidSnapshot, offset, err)
	}
	return &page, nil
}
