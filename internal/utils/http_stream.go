package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxErrorBodySize caps how much of a failed response body is read (1 MB).
// Enforced via io.LimitReader to prevent unbounded memory allocation from
// rogue responses.
const maxErrorBodySize int64 = 1 * 1024 * 1024

// HeaderOption is a single HTTP header to set on an outbound request.
// Options are applied after the defaults and may override them.
type HeaderOption struct {
	Key   string
	Value string
}

// HTTPStatusError is returned by DoPostStream for a non-2xx upstream
// response. It carries the status code and the (size-capped) response body so
// callers can classify the failure.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, e.Body)
}

// DoPostStream performs an HTTP POST request and returns the raw response with
// body left open for incremental reading. The caller is responsible for
// closing the response body when done. On error paths (including non-2xx
// responses, returned as *HTTPStatusError) the body is read and closed before
// returning.
func DoPostStream(ctx context.Context, client *http.Client, url string, body any, headers ...HeaderOption) (*http.Response, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	response, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
		if readErr != nil {
			return response, fmt.Errorf("non-2xx status %d (failed to read body: %v)", response.StatusCode, readErr)
		}
		return response, &HTTPStatusError{StatusCode: response.StatusCode, Body: string(errorBody)}
	}

	return response, nil
}

// CloseWithLog closes the given closer, logging a warning on failure rather
// than overriding whatever primary error the caller is already handling.
func CloseWithLog(closer io.Closer) {
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}
