package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
)

const maxResponseSizeBytes = 1 << 20

var ErrUpstreamStatus = errors.New("upstream returned error status")

// postJSON sends body to endpoint and decodes the JSON reply into out.
// Client errors other than 408 and 429 are marked permanent so the executor
// does not repeat a request that cannot succeed.
func postJSON(ctx context.Context, client *http.Client, endpoint, token string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return resiliencex.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return resiliencex.Permanent(fmt.Errorf("build request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("%w: status=%d body=%s", ErrUpstreamStatus, resp.StatusCode, truncate(string(raw), 256))
		if !retriableStatus(resp.StatusCode) {
			return resiliencex.Permanent(err)
		}
		return err
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resiliencex.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func retriableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
