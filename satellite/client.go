package satellite

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/remote"
	"github.com/google/uuid"
)

// HTTPClient implements Client over the satellite HTTP contract.
type HTTPClient struct {
	remote *remote.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for d with its own connection pool.
func NewHTTPClient(d Definition, timeout time.Duration) (*HTTPClient, error) {
	rc, err := remote.New(d.BaseURL, timeout, &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	})
	if err != nil {
		return nil, err
	}
	return &HTTPClient{remote: rc}, nil
}

// HTTPClientFactory adapts NewHTTPClient to NewRegistry.
func HTTPClientFactory(timeout time.Duration) func(Definition) (Client, error) {
	return func(d Definition) (Client, error) {
		return NewHTTPClient(d, timeout)
	}
}

func (c *HTTPClient) Summary(ctx context.Context, personID uuid.UUID) (*PlayerSummary, error) {
	var out PlayerSummary
	if err := c.remote.GetJSON(ctx, "/satellite/players/"+personID.String()+"/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Profile(ctx context.Context, personID uuid.UUID) (*PlayerProfile, error) {
	var out PlayerProfile
	if err := c.remote.GetJSON(ctx, "/satellite/players/"+personID.String()+"/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Roster(ctx context.Context, asdID, seasonID uuid.UUID) (*Roster, error) {
	var out Roster
	q := url.Values{"asd": {asdID.String()}, "season": {seasonID.String()}}
	if err := c.remote.GetJSON(ctx, "/satellite/roster", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
