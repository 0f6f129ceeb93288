// Package uploader ships captured images to an HTTP ingest endpoint.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Upload POSTs a JPEG to the ingest endpoint. The capture name travels
// in a header so the body stays the raw image.
func (c *Client) Upload(ctx context.Context, name string, jpegData []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewReader(jpegData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("X-Capture-Name", name)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}
	return nil
}
