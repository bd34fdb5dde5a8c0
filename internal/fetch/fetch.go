// Package fetch implements the generic download layer shared by all
// resolvers: JSON and raw HTTP fetching with geo-verification headers
// and bounded retry. Retry lives here and nowhere else; resolvers
// treat a failed fetch as a failed resolution.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/config"
)

// Request describes a single fetch. ID and Note are used for logging
// only, mirroring what the calling resolver is working on.
type Request struct {
	URL     string
	ID      string
	Note    string
	Query   url.Values
	Headers http.Header
	Body    interface{} // JSON-encoded and POSTed when non-nil
}

// countryBlocks maps country codes to an address block of a large
// consumer ISP there; the spoofed X-Forwarded-For is drawn from the
// block.
var countryBlocks = map[string]string{
	"HK": "203.198",
	"SG": "203.116",
	"TH": "58.8",
	"PH": "112.198",
	"ID": "114.122",
	"MY": "175.136",
	"IN": "106.198",
}

// Downloader performs HTTP requests on behalf of the resolvers.
type Downloader struct {
	client     *http.Client
	geoCountry string
	geoBypass  bool
	retries    int
	logger     *logrus.Logger
}

// NewDownloader creates a new downloader from configuration
func NewDownloader(cfg *config.Config, logger *logrus.Logger) *Downloader {
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10

	return &Downloader{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		geoCountry: cfg.GeoCountry,
		geoBypass:  cfg.GeoBypass,
		retries:    cfg.HTTPRetries,
		logger:     logger,
	}
}

// GeoHeaders returns the geo-verification header set for the
// configured country: an X-Forwarded-For synthesized from an address
// block of that country. Empty when bypass is off, no country is
// configured, or the country has no known block.
func (d *Downloader) GeoHeaders() http.Header {
	headers := http.Header{}
	if !d.geoBypass || d.geoCountry == "" {
		return headers
	}
	block, ok := countryBlocks[strings.ToUpper(d.geoCountry)]
	if !ok {
		d.logger.WithField("country", d.geoCountry).Debug("No address block for country, skipping geo header")
		return headers
	}
	headers.Set("X-Forwarded-For", fmt.Sprintf("%s.%d.%d", block, rand.Intn(256), 1+rand.Intn(254)))
	return headers
}

// FetchJSON performs the request and decodes the JSON response into out.
func (d *Downloader) FetchJSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := d.FetchRaw(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", req.ID, err)
	}
	return nil
}

// FetchRaw performs the request and returns the raw response. Used
// where the caller needs response headers or a non-JSON body. The
// caller owns the body and must close it.
func (d *Downloader) FetchRaw(ctx context.Context, req Request) (*http.Response, error) {
	d.logger.WithFields(logrus.Fields{
		"id":   req.ID,
		"url":  req.URL,
		"note": req.Note,
	}).Debug("Fetching")

	var resp *http.Response
	operation := func() error {
		httpReq, err := d.buildRequest(ctx, req)
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := d.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if r.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
			r.Body.Close()
			return fmt.Errorf("server returned status %d: %s", r.StatusCode, string(body))
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
			r.Body.Close()
			return backoff.Permanent(fmt.Errorf("server returned status %d: %s", r.StatusCode, string(body)))
		}

		resp = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.retries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetch %s (%s) failed: %w", req.ID, req.URL, err)
	}

	return resp, nil
}

// buildRequest assembles the http.Request for one attempt.
func (d *Downloader) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	fullURL := req.URL
	if len(req.Query) > 0 {
		parsed, err := url.Parse(req.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", req.URL, err)
		}
		query := parsed.Query()
		for key, values := range req.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		parsed.RawQuery = query.Encode()
		fullURL = parsed.String()
	}

	method := http.MethodGet
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		method = http.MethodPost
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", "goviu/1.0")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Set(key, value)
		}
	}

	return httpReq, nil
}
