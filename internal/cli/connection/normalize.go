package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
)

// NormalizeTransportError classifies a failure that produced no response.
// Cancellation and deadline expiry map to Timeout, everything else to Network.
func NormalizeTransportError(err error) *domain.NormalizedError {
	if ne, ok := domain.AsNormalized(err); ok {
		return ne
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewTimeoutError(err)
	}
	return domain.NewNetworkError(err)
}

// NormalizeStatus classifies a non-2xx response. body is the decoded body
// (JSON value or raw text) and is kept as RawBody.
func NormalizeStatus(status int, body any) *domain.NormalizedError {
	msg := messageFrom(body)
	if status == http.StatusUnauthorized {
		return domain.NewAuthExpiredError(msg, body)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	return domain.NewHTTPStatusError(status, msg, body)
}

// decodeBody parses raw according to its content type. Non-JSON bodies are
// returned as text; an empty body decodes to nil.
func decodeBody(contentType string, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !isJSON(contentType) {
		return string(raw), nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, domain.NewDecodeError(err, string(raw))
	}
	return v, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// messageFrom extracts body.message, falling back to body.error.
func messageFrom(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"message", "error"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
