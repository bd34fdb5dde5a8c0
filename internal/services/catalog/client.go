// Package catalog resolves items and playlists of the main catalog
// API, which requires a guest session token obtained once per process.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/fetch"
	"github.com/amaumene/goviu/internal/models"
)

const (
	siteName   = "viu"
	appID      = "viu_desktop"
	authHeader = "X-VIU-AUTH"
)

// Client handles communication with the catalog API. The auth token is
// written once by Initialize and only read afterwards, so concurrent
// calls are safe without locking.
type Client struct {
	apiBase   string
	authURL   string
	dl        *fetch.Downloader
	logger    *logrus.Logger
	authToken string
}

// NewClient creates a new catalog API client
func NewClient(dl *fetch.Downloader, logger *logrus.Logger) *Client {
	return &Client{
		apiBase: "https://www.viu.com/api/",
		authURL: "https://www.viu.com/api/apps/v2/authenticate",
		dl:      dl,
		logger:  logger,
	}
}

// Initialize performs the guest-credential handshake and stores the
// session token. The parameter set is part of the vendor's API
// contract and must not change. Failure is fatal: no catalog call can
// proceed without a token.
func (c *Client) Initialize(ctx context.Context) error {
	query := url.Values{
		"acct":       {"test"},
		"appid":      {appID},
		"fmt":        {"json"},
		"iid":        {"guest"},
		"languageid": {"default"},
		"platform":   {"desktop"},
		"userid":     {"guest"},
		"useridtype": {"guest"},
		"ver":        {"1.0"},
	}

	resp, err := c.dl.FetchRaw(ctx, fetch.Request{
		URL:     c.authURL,
		Note:    "Requesting auth",
		Query:   query,
		Headers: c.dl.GeoHeaders(),
	})
	if err != nil {
		return fmt.Errorf("auth handshake failed: %w", err)
	}
	defer resp.Body.Close()

	token := resp.Header.Get(authHeader)
	if token == "" {
		return fmt.Errorf("auth handshake returned no %s header", authHeader)
	}

	c.authToken = token
	c.logger.Debug("Catalog session token acquired")
	return nil
}

// envelope is the vendor's standard JSON wrapper.
type envelope struct {
	Response json.RawMessage `json:"response"`
}

// envelopeStatus carries the per-call success/failure signal.
type envelopeStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CallAPI issues a catalog API call with geo and auth headers, unwraps
// the response envelope and decodes its payload into out. A
// non-success envelope status yields a *models.APIError carrying the
// vendor's message.
func (c *Client) CallAPI(ctx context.Context, path, id, note string, query url.Values, headers http.Header, out interface{}) error {
	merged := c.dl.GeoHeaders()
	merged.Set(authHeader, c.authToken)
	for key, values := range headers {
		for _, value := range values {
			merged.Set(key, value)
		}
	}

	var wrapped envelope
	err := c.dl.FetchJSON(ctx, fetch.Request{
		URL:     c.apiBase + path,
		ID:      id,
		Note:    note,
		Query:   query,
		Headers: merged,
	}, &wrapped)
	if err != nil {
		return err
	}
	if len(wrapped.Response) == 0 {
		return fmt.Errorf("API response for %s has no payload", id)
	}

	var status envelopeStatus
	if err := json.Unmarshal(wrapped.Response, &status); err != nil {
		return fmt.Errorf("failed to decode API status for %s: %w", id, err)
	}
	if status.Status != "success" {
		message := status.Message
		if message == "" {
			message = status.Status
		}
		return &models.APIError{Site: siteName, Message: message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(wrapped.Response, out); err != nil {
		return fmt.Errorf("failed to decode API payload for %s: %w", id, err)
	}
	return nil
}
