package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// MaxPageSize is the largest page the metadata search endpoint accepts.
const MaxPageSize = 1000

// Client represents an Immich API client
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new Immich client
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				MaxConnsPerHost:    10,
				IdleConnTimeout:    90 * time.Second,
				DisableCompression: false,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Every(10*time.Millisecond), 100), // 100 req/sec
	}
}

// BaseURL returns the server URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks if the Immich server is reachable
func (c *Client) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/server/ping", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed with status: %d", resp.StatusCode)
	}

	return nil
}

// GetDuplicates returns the duplicate groups found by the server's duplicate detection
func (c *Client) GetDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	endpoint := fmt.Sprintf("%s/api/duplicates", c.baseURL)

	var groups []DuplicateGroup
	if err := c.get(ctx, endpoint, &groups); err != nil {
		return nil, fmt.Errorf("failed to get duplicates: %w", err)
	}

	return groups, nil
}

// SearchMetadata fetches one page of assets, with EXIF data, from the metadata search
func (c *Client) SearchMetadata(ctx context.Context, page, size int) (*AssetPage, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}

	endpoint := fmt.Sprintf("%s/api/search/metadata", c.baseURL)

	body := map[string]interface{}{
		"page":     page,
		"size":     size,
		"withExif": true,
	}

	var searchResult struct {
		Assets struct {
			Total    int     `json:"total"`
			Count    int     `json:"count"`
			Items    []Asset `json:"items"`
			NextPage *string `json:"nextPage"`
		} `json:"assets"`
	}

	if err := c.post(ctx, endpoint, body, &searchResult); err != nil {
		return nil, err
	}

	return &AssetPage{
		Assets:      searchResult.Assets.Items,
		Page:        page,
		PageSize:    size,
		TotalCount:  searchResult.Assets.Total,
		HasNextPage: searchResult.Assets.NextPage != nil && len(searchResult.Assets.Items) > 0,
	}, nil
}

// GetAllAssets walks every page of the metadata search and returns the flattened result.
// Paging stops on the first empty page or when the server reports no next page.
func (c *Client) GetAllAssets(ctx context.Context, pageSize int) ([]Asset, error) {
	var all []Asset

	for page := 1; ; page++ {
		log.Debug().Int("page", page).Int("size", pageSize).Msg("Fetching asset page")

		result, err := c.SearchMetadata(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch asset page %d: %w", page, err)
		}

		if len(result.Assets) == 0 {
			break
		}

		log.Debug().
			Int("page", page).
			Int("count", len(result.Assets)).
			Str("first_id", result.Assets[0].ID).
			Msg("Fetched asset page")

		all = append(all, result.Assets...)

		if !result.HasNextPage {
			break
		}
	}

	return all, nil
}

// DeleteAssets deletes assets, permanently when forceDelete is set
func (c *Client) DeleteAssets(ctx context.Context, assetIDs []string, forceDelete bool) error {
	if len(assetIDs) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/assets", c.baseURL)

	body := map[string]interface{}{
		"ids":   assetIDs,
		"force": forceDelete, // true = permanent delete, false = trash
	}

	return c.delete(ctx, endpoint, body)
}

// SearchPerson finds people by name
func (c *Client) SearchPerson(ctx context.Context, name string) ([]Person, error) {
	query := url.Values{}
	query.Set("name", name)

	endpoint := fmt.Sprintf("%s/api/search/person?%s", c.baseURL, query.Encode())

	var people []Person
	if err := c.get(ctx, endpoint, &people); err != nil {
		return nil, fmt.Errorf("failed to search person %q: %w", name, err)
	}

	return people, nil
}

// SearchRandom returns up to n random images containing the given people
func (c *Client) SearchRandom(ctx context.Context, personIDs []string, n int) ([]Asset, error) {
	endpoint := fmt.Sprintf("%s/api/search/random", c.baseURL)

	if n <= 0 {
		n = 1
	}

	body := RandomSearchParams{
		PersonIDs:   personIDs,
		Type:        "IMAGE",
		WithDeleted: false,
		Size:        n,
	}

	var assets []Asset
	if err := c.post(ctx, endpoint, body, &assets); err != nil {
		return nil, err
	}

	return assets, nil
}

// DownloadOriginal downloads the original file of an asset
func (c *Client) DownloadOriginal(ctx context.Context, assetID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/assets/%s/original", c.baseURL, url.PathEscape(assetID))

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("failed to download asset %s: %w", assetID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", assetID, err)
	}

	return data, nil
}

// Helper methods for HTTP operations

func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	return c.request(ctx, http.MethodGet, url, nil, result)
}

func (c *Client) post(ctx context.Context, url string, body interface{}, result interface{}) error {
	return c.request(ctx, http.MethodPost, url, body, result)
}

func (c *Client) delete(ctx context.Context, url string, body interface{}) error {
	return c.request(ctx, http.MethodDelete, url, body, nil)
}

func (c *Client) request(ctx context.Context, method, url string, body interface{}, result interface{}) error {
	resp, err := c.do(ctx, method, url, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// do sends the request and returns the response for any status below 400.
// The caller owns the response body.
func (c *Client) do(ctx context.Context, method, url string, body interface{}, accept string) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	requestLogger := log.Debug().
		Str("method", method).
		Str("url", url)

	if len(jsonBody) > 0 && zerolog.GlobalLevel() <= zerolog.TraceLevel {
		requestLogger = requestLogger.RawJSON("payload", jsonBody)
	}

	requestLogger.Msg("Calling Immich API")

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Received Immich API response")

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}
