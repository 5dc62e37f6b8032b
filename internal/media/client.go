// Package media lists gallery assets from the media search service.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid media config")
	ErrUnavailable   = errors.New("media service unavailable")
)

const (
	defaultTimeout = 10 * time.Second
	searchPath     = "/resources/search"

	resourceTypeImage = "image"
	resourceTypeVideo = "video"
)

// Config carries the media search endpoint and credentials.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Validate reports the missing fields.
func (config Config) Validate() error {
	var missing []string
	if strings.TrimSpace(config.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if strings.TrimSpace(config.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if strings.TrimSpace(config.APISecret) == "" {
		missing = append(missing, "api secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Asset is one gallery item.
type Asset struct {
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
	Format       string `json:"format"`
	SecureURL    string `json:"secure_url"`
	CreatedAt    string `json:"created_at"`
}

type searchResponse struct {
	Resources []Asset `json:"resources"`
}

// Client queries the media search API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient validates the config and returns a ready client.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// ListAssets returns the folder's image and video assets. Other resource
// types the service may hold are filtered out.
func (client *Client) ListAssets(ctx context.Context, folder string) ([]Asset, error) {
	query := url.Values{
		"expression":  []string{fmt.Sprintf("folder=%s", folder)},
		"max_results": []string{"100"},
	}
	endpoint := strings.TrimRight(client.config.BaseURL, "/") + searchPath + "?" + query.Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("media request: %w", err)
	}
	request.SetBasicAuth(client.config.APIKey, client.config.APISecret)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, response.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("media decode: %w", err)
	}

	assets := make([]Asset, 0, len(payload.Resources))
	for _, asset := range payload.Resources {
		if asset.ResourceType == resourceTypeImage || asset.ResourceType == resourceTypeVideo {
			assets = append(assets, asset)
		}
	}
	return assets, nil
}
