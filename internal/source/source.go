// Package source defines the per-platform fetch adapters that translate
// source-specific payloads into notes.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"notesbot/internal/model"
)

const userAgent = "NotesCollectorBot/1.0"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Adapter fetches items from one platform. Implementations are stateless
// per call: given a source identifier and a watermark, they return the
// items published since then, already normalized into notes. The owning
// user and filtering are applied downstream by the pipeline.
type Adapter interface {
	Platform() model.Platform
	Fetch(ctx context.Context, identifier string, since time.Time) ([]model.Note, error)
}

// Registry maps platforms to their adapters. Adding a platform is a
// registry entry, not a new switch arm.
type Registry map[model.Platform]Adapter

// NewRegistry builds a Registry from the given adapters.
func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Platform()] = a
	}
	return r
}

// Lookup returns the adapter for a platform.
func (r Registry) Lookup(p model.Platform) (Adapter, bool) {
	a, ok := r[p]
	return a, ok
}

// fetchBody performs a GET and returns the response body. HTTP statuses
// that indicate a missing source (404, 410) are permanent failures;
// everything else, including network errors, is transient.
func fetchBody(ctx context.Context, client HTTPClient, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanentErr(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, transientErr(fmt.Errorf("http get: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, permanentErr(fmt.Errorf("source not found: status %d", resp.StatusCode))
	default:
		return nil, transientErr(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transientErr(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
