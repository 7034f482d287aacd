package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

// providerError is the error body shape used by OAuth 2.0 providers
// (RFC 6749 section 5.2).
type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ParseProviderError consumes the body of a non-2xx provider response and
// translates it into an AppError. 4xx responses mean the request we built or
// the credential the caller presented was bad; everything else is an upstream
// failure. The response body is fully read and closed.
func ParseProviderError(resp *http.Response, provider string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Upstream(provider, fmt.Errorf("status %d (read body: %w)", resp.StatusCode, err))
	}

	var pe providerError
	detail := string(bodyBytes)
	if json.Unmarshal(bodyBytes, &pe) == nil && pe.Error != "" {
		detail = pe.Error
		if pe.ErrorDescription != "" {
			detail = pe.Error + ": " + pe.ErrorDescription
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return apperrors.BadRequest(fmt.Sprintf("%s rejected request: %s", provider, detail))
	}
	return apperrors.Upstream(provider, fmt.Errorf("status %d: %s", resp.StatusCode, detail))
}
