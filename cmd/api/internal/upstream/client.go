// Package upstream fetches the price domain from its HTTP sources: the
// bootstrap document that names the current client version, and the
// versioned price feed.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/apperr"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 64 << 20

// Client talks to the version resolver and the price feed.
type Client struct {
	bootstrapURL string
	priceBaseURL string
	userAgent    string
	httpClient   *http.Client
	logger       *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the given bootstrap document and price feed base URL.
func NewClient(bootstrapURL, priceBaseURL string, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		bootstrapURL: bootstrapURL,
		priceBaseURL: strings.TrimRight(priceBaseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout sets the HTTP client timeout. A client passed with
// WithHTTPClient is copied, not modified.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithUserAgent sets the User-Agent sent upstream.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

type bootstrapDocument struct {
	Client struct {
		Version string `json:"version"`
	} `json:"client"`
}

// ResolveVersion returns the client version named by the bootstrap document.
func (c *Client) ResolveVersion(ctx context.Context) (string, error) {
	var doc bootstrapDocument
	if err := c.getJSON(ctx, c.bootstrapURL, &doc); err != nil {
		return "", err
	}
	if doc.Client.Version == "" {
		return "", &apperr.DecodeError{Source: c.bootstrapURL, Err: fmt.Errorf("client.version is empty")}
	}

	c.logger.Info("Resolved upstream version", zap.String("version", doc.Client.Version))
	return doc.Client.Version, nil
}

// PricesURL is the price feed location for version.
func (c *Client) PricesURL(version string) string {
	return fmt.Sprintf("%s/runelite-%s/item/prices.js", c.priceBaseURL, version)
}

// FetchItemPrices downloads and decodes the price feed of version.
func (c *Client) FetchItemPrices(ctx context.Context, version string) ([]models.ItemPrice, error) {
	var prices []models.ItemPrice
	if err := c.getJSON(ctx, c.PricesURL(version), &prices); err != nil {
		return nil, err
	}
	if prices == nil {
		prices = []models.ItemPrice{}
	}
	return prices, nil
}

// FetchText performs a GET and returns the trimmed body as a string.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) getJSON(ctx context.Context, url string, result any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &apperr.DecodeError{Source: url, Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &apperr.FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &apperr.FetchError{URL: url, StatusCode: 0, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", http.StatusText(resp.StatusCode)),
		}
	}

	return body, nil
}
