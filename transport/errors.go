package transport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-certledger/core"
	goerrors "github.com/goliatone/go-errors"
)

func newError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorServiceUnavailable)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(source error, message string, metadata map[string]any) error {
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorServiceUnavailable)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// StatusError describes a non-2xx response as an envelope whose category
// follows the status: 401/403 are auth failures, 429 is a rate limit, other
// 4xx are rejected input and everything else is an upstream fault. It returns
// nil for successful responses.
func StatusError(res Response, message string) error {
	if res.OK() {
		return nil
	}
	category, textCode := goerrors.CategoryExternal, core.ErrorServiceUnavailable
	switch {
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		category, textCode = goerrors.CategoryAuthz, core.ErrorForbidden
	case res.StatusCode == http.StatusTooManyRequests:
		category, textCode = goerrors.CategoryRateLimit, core.ErrorRateLimited
	case res.StatusCode >= 400 && res.StatusCode < 500:
		category, textCode = goerrors.CategoryBadInput, core.ErrorValidation
	}
	if strings.TrimSpace(message) == "" {
		message = "transport: unexpected response status"
	}
	return goerrors.New(fmt.Sprintf("%s: status %d", message, res.StatusCode), category).
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"status_code": res.StatusCode,
			"body":        truncate(res.Body, 256),
		})
}

func truncate(body []byte, limit int) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
