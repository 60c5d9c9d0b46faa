package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/geowatch/zonewatch-go/internal/geo"
)

// Sentinel Hub API endpoints.
const (
	DefaultBaseURL    = "https://services.sentinel-hub.com"
	tokenPath         = "/oauth/token"
	catalogSearchPath = "/api/v1/catalog/1.0.0/search"
	processPath       = "/api/v1/process"

	// DefaultCollection is the scene collection searched by default.
	DefaultCollection = "sentinel-2-l2a"
)

// tokenSlack is subtracted from the advertised token lifetime so a token is
// refreshed before it actually expires mid-request.
const tokenSlack = 60 * time.Second

// SentinelClient talks to a Sentinel-Hub-compatible imagery API.
type SentinelClient struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Collection   string
	HTTPClient   *http.Client

	retryAttempts int

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// SentinelOption customizes a SentinelClient.
type SentinelOption func(*SentinelClient)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(u string) SentinelOption {
	return func(c *SentinelClient) { c.BaseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) SentinelOption {
	return func(c *SentinelClient) { c.HTTPClient.Timeout = d }
}

// WithRetryAttempts sets how many times a transient call failure is retried.
func WithRetryAttempts(n int) SentinelOption {
	return func(c *SentinelClient) {
		if n > 0 {
			c.retryAttempts = n
		}
	}
}

// WithCollection overrides the searched scene collection.
func WithCollection(collection string) SentinelOption {
	return func(c *SentinelClient) { c.Collection = collection }
}

// NewSentinelClient creates a client for the given OAuth client credentials.
func NewSentinelClient(clientID, clientSecret string, opts ...SentinelOption) *SentinelClient {
	c := &SentinelClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		BaseURL:      DefaultBaseURL,
		Collection:   DefaultCollection,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryAttempts: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether both credentials are present.
func (c *SentinelClient) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Authenticate obtains an access token via the client-credentials grant.
// It is idempotent: a still-valid token is reused. Missing credentials
// return (false, nil).
func (c *SentinelClient) Authenticate(ctx context.Context) (bool, error) {
	if !c.Configured() {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return true, nil
	}
	if err := c.fetchTokenLocked(ctx); err != nil {
		return false, &AuthError{Err: err}
	}
	return true, nil
}

// fetchTokenLocked exchanges the client credentials for a token. Caller holds mu.
func (c *SentinelClient) fetchTokenLocked(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+tokenPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token response contained no access token")
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenSlack)
	return nil
}

// catalogFeature is the subset of a STAC feature the scheduler needs.
type catalogFeature struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Properties struct {
		Datetime   string  `json:"datetime"`
		CloudCover float64 `json:"eo:cloud_cover"`
		GSD        float64 `json:"gsd"`
	} `json:"properties"`
}

// SearchLatestScene queries the catalog for the freshest qualifying scene.
// It returns (nil, nil) when no scene within maxAgeDays clears the cloud
// cover threshold.
func (c *SentinelClient) SearchLatestScene(ctx context.Context, box geo.BBox, maxAgeDays int, maxCloudCoverPercent float64) (*Scene, error) {
	ok, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	query := map[string]any{
		"bbox":        []float64{box.MinLon, box.MinLat, box.MaxLon, box.MaxLat},
		"datetime":    fmt.Sprintf("%s/%s", now.AddDate(0, 0, -maxAgeDays).Format(time.RFC3339), now.Format(time.RFC3339)),
		"collections": []string{c.Collection},
		"limit":       1,
		"filter": map[string]any{
			"op": "<=",
			"args": []any{
				map[string]string{"property": "eo:cloud_cover"},
				maxCloudCoverPercent,
			},
		},
		"filter-lang": "cql2-json",
		"sortby": []map[string]string{
			{"field": "properties.datetime", "direction": "desc"},
		},
	}

	body, err := c.doJSON(ctx, catalogSearchPath, query, "application/json")
	if err != nil {
		return nil, &SearchError{Err: err}
	}

	var result struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &SearchError{Err: fmt.Errorf("failed to parse search response: %w", err)}
	}
	if len(result.Features) == 0 {
		return nil, nil
	}

	var feature catalogFeature
	if err := json.Unmarshal(result.Features[0], &feature); err != nil {
		return nil, &SearchError{Err: fmt.Errorf("failed to parse scene feature: %w", err)}
	}
	sensed, err := time.Parse(time.RFC3339, feature.Properties.Datetime)
	if err != nil {
		return nil, &SearchError{Err: fmt.Errorf("failed to parse scene datetime %q: %w", feature.Properties.Datetime, err)}
	}

	resolution := ""
	if feature.Properties.GSD > 0 {
		resolution = fmt.Sprintf("%gm", feature.Properties.GSD)
	}

	return &Scene{
		ID:                feature.ID,
		Collection:        feature.Collection,
		SensedDate:        sensed,
		CloudCoverPercent: feature.Properties.CloudCover,
		Resolution:        resolution,
		RawMetadata:       result.Features[0],
	}, nil
}

// trueColorEvalscript renders a standard visual composite.
const trueColorEvalscript = `//VERSION=3
function setup() {
  return { input: ["B04", "B03", "B02"], output: { bands: 3 } };
}
function evaluatePixel(sample) {
  return [2.5 * sample.B04, 2.5 * sample.B03, 2.5 * sample.B02];
}`

// FetchScenePixels renders the scene over the requested box as a PNG of
// targetSize pixels per side.
func (c *SentinelClient) FetchScenePixels(ctx context.Context, scene *Scene, box geo.BBox, targetSize int) ([]byte, error) {
	ok, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &FetchError{Err: errProviderDisabled}
	}

	day := scene.SensedDate.UTC().Format("2006-01-02")
	request := map[string]any{
		"input": map[string]any{
			"bounds": map[string]any{
				"bbox": []float64{box.MinLon, box.MinLat, box.MaxLon, box.MaxLat},
			},
			"data": []map[string]any{
				{
					"type": c.Collection,
					"dataFilter": map[string]any{
						"timeRange": map[string]string{
							"from": day + "T00:00:00Z",
							"to":   day + "T23:59:59Z",
						},
					},
				},
			},
		},
		"output": map[string]any{
			"width":  targetSize,
			"height": targetSize,
			"responses": []map[string]any{
				{"identifier": "default", "format": map[string]string{"type": "image/png"}},
			},
		},
		"evalscript": trueColorEvalscript,
	}

	body, err := c.doJSON(ctx, processPath, request, "image/png")
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if len(body) == 0 {
		return nil, &FetchError{Err: fmt.Errorf("empty pixel response for scene %s", scene.ID)}
	}
	return body, nil
}

// doJSON posts a JSON payload with the bearer token and returns the raw
// response body. Transient failures are retried up to retryAttempts times;
// a 401 triggers a single token refresh.
func (c *SentinelClient) doJSON(ctx context.Context, path string, payload any, accept string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	refreshed := false
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", accept)
		c.mu.Lock()
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		c.mu.Unlock()

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			// Token expired server-side; refresh once and retry.
			refreshed = true
			c.mu.Lock()
			c.accessToken = ""
			err := c.fetchTokenLocked(ctx)
			c.mu.Unlock()
			if err != nil {
				return nil, &AuthError{Err: err}
			}
			attempt--
		case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
		default:
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}
	return nil, lastErr
}

var _ Client = (*SentinelClient)(nil)
