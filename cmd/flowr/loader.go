package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// loadManifest implements coordinator.ManifestLoader for the two Url
// forms §6 describes a manifest_url taking: a local file path (bare or
// file://) and an http(s):// Url fetched over the network. The returned
// manifestDir anchors every function's relative implementation_location
// (§4.3 "Relocatability").
func loadManifest(ctx context.Context, manifestURL string) ([]byte, string, error) {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return nil, "", fmt.Errorf("load manifest: parse url %q: %w", manifestURL, err)
	}

	switch u.Scheme {
	case "", "file":
		path := manifestURL
		if u.Scheme == "file" {
			path = u.Path
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("load manifest: read %q: %w", path, err)
		}
		return data, filepath.Dir(path), nil

	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("load manifest: build request: %w", err)
		}
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("load manifest: fetch %q: %w", manifestURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("load manifest: fetch %q: status %s", manifestURL, resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("load manifest: read response body: %w", err)
		}
		manifestDir := strings.TrimSuffix(manifestURL, "/"+filepath.Base(u.Path))
		return data, manifestDir, nil

	default:
		return nil, "", fmt.Errorf("load manifest: unsupported url scheme %q", u.Scheme)
	}
}
