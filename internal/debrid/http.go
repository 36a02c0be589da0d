package debrid

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
)

const userAgent = "gostremiodebrid/1.0"

// send performs req and returns the body. The body is always closed. 401 and
// 403 become auth errors, 429 and 5xx transient ones, transport errors are
// transient too.
func send(client *http.Client, provider string, req *http.Request) (int, []byte, error) {
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return 0, nil, err
		}
		return 0, nil, transient(fmt.Errorf("%s request failed: %w", provider, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxAPIBody))
	if err != nil {
		return resp.StatusCode, nil, transient(fmt.Errorf("read %s response: %w", provider, err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, body, apperrors.NewAuthError(provider, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resp.StatusCode, body, transient(fmt.Errorf("%s HTTP %d: %s", provider, resp.StatusCode, snippet(body)))
	}
	return resp.StatusCode, body, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
