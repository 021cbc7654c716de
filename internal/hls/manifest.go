// Package hls discovers media segment URLs from HLS manifests
package hls

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SegmentExtension is the file extension of HLS media segments
const SegmentExtension = ".ts"

// SegmentURLs fetches the manifest at manifestURL and returns the absolute
// URL of every media segment it references. Relative segment paths are
// resolved against the manifest's own URL. Each call re-fetches the
// manifest; the same derivation runs on download, deletion and size
// accounting so the three stay consistent.
func SegmentURLs(ctx context.Context, client *http.Client, manifestURL string) ([]string, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest fetch failed with status %d", resp.StatusCode)
	}

	var segments []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasSuffix(line, SegmentExtension) {
			continue
		}

		ref, err := url.Parse(line)
		if err != nil {
			continue
		}
		segments = append(segments, base.ResolveReference(ref).String())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return segments, nil
}
