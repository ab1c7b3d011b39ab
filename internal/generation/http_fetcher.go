package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/proflinker/api/internal/models"
)

const maxResponseBytes = 4 << 20

// HTTPFetcher calls a remote generation function over HTTP
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for the functions rooted at baseURL.
// The controller owns the timeout, so the client should not set one.
func NewHTTPFetcher(baseURL, apiKey string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (any, error) {
	var path string
	switch req.Kind {
	case models.KindUniversities:
		path = "/generate-universities"
	case models.KindProfessors:
		path = "/generate-professors"
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, req.Kind)
	}

	body, err := json.Marshal(NewFunctionRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyFetchError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var fe FunctionError
		if json.Unmarshal(data, &fe) == nil && fe.Error != "" {
			if fe.Details != "" {
				return nil, fmt.Errorf("%w: status %d: %s (%s)", ErrUpstream, resp.StatusCode, fe.Error, fe.Details)
			}
			return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, fe.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	return DecodeRaw(data)
}
