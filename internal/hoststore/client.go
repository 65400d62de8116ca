package hoststore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gantry/internal/artifact"
	"gantry/internal/config"
	"gantry/internal/services"
)

// Item is the host store's view of a dataset item.
type Item struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// Store defines the host dataset-store operations the workflow depends on.
type Store interface {
	FetchItem(ctx context.Context, itemID, destDir string) (string, error)
	UploadBundle(ctx context.Context, itemID string, bundle *artifact.Bundle) error
	SetMetadata(ctx context.Context, itemID string, metadata map[string]any) error
}

// Client talks to the host dataset store's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a host store client from configuration.
func New(cfg config.HostStore, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "hoststore", "new", "url required", nil)
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FetchItem downloads the item's file container into destDir and returns the
// local path. The store serves items as ZIP archives.
func (c *Client) FetchItem(ctx context.Context, itemID, destDir string) (string, error) {
	if strings.TrimSpace(itemID) == "" {
		return "", services.Wrap(services.ErrInput, "hoststore", "fetch", "item id required", nil)
	}

	endpoint := fmt.Sprintf("%s/api/v1/item/%s/download", c.baseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "hoststore", "fetch", "build request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "hoststore", "fetch", "host store unreachable", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("fetch", resp.StatusCode); err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "hoststore", "fetch", "create destination", err)
	}
	localPath := filepath.Join(destDir, itemID+".zip")
	file, err := os.Create(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "hoststore", "fetch", "create local file", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = os.Remove(localPath)
		return "", services.Wrap(services.ErrTransient, "hoststore", "fetch", "download item", err)
	}
	return localPath, nil
}

// UploadBundle writes the artifact bundle back to the item: one file per
// encoded image plus the manifest, all tagged with the bundle's run ID.
func (c *Client) UploadBundle(ctx context.Context, itemID string, bundle *artifact.Bundle) error {
	if strings.TrimSpace(itemID) == "" {
		return services.Wrap(services.ErrInput, "hoststore", "upload", "item id required", nil)
	}
	if bundle == nil || len(bundle.Images) == 0 {
		return services.Wrap(services.ErrInput, "hoststore", "upload", "empty bundle", nil)
	}

	for _, img := range bundle.Images {
		if err := c.uploadFile(ctx, itemID, bundle.Manifest.RunID, img.Name, "image/png", img.Data); err != nil {
			return err
		}
	}

	manifest, err := json.MarshalIndent(bundle.Manifest, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrInput, "hoststore", "upload", "encode manifest", err)
	}
	return c.uploadFile(ctx, itemID, bundle.Manifest.RunID, "manifest.json", "application/json", manifest)
}

func (c *Client) uploadFile(ctx context.Context, itemID, runID, name, contentType string, data []byte) error {
	endpoint := fmt.Sprintf("%s/api/v1/item/%s/files?name=%s&run_id=%s",
		c.baseURL, url.PathEscape(itemID), url.QueryEscape(name), url.QueryEscape(runID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrTransient, "hoststore", "upload", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "hoststore", "upload", "host store unreachable", err)
	}
	defer resp.Body.Close()

	return classifyStatus("upload "+name, resp.StatusCode)
}

// SetMetadata merges metadata onto the item record.
func (c *Client) SetMetadata(ctx context.Context, itemID string, metadata map[string]any) error {
	if strings.TrimSpace(itemID) == "" {
		return services.Wrap(services.ErrInput, "hoststore", "metadata", "item id required", nil)
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		return services.Wrap(services.ErrInput, "hoststore", "metadata", "encode metadata", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/item/%s/metadata", c.baseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrTransient, "hoststore", "metadata", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "hoststore", "metadata", "host store unreachable", err)
	}
	defer resp.Body.Close()

	return classifyStatus("metadata", resp.StatusCode)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func classifyStatus(operation string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return services.Wrap(services.ErrRejected, "hoststore", operation,
			fmt.Sprintf("host store rejected request (%d)", code), nil)
	default:
		return services.Wrap(services.ErrTransient, "hoststore", operation,
			fmt.Sprintf("host store returned %d", code), nil)
	}
}
