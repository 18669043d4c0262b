package providers

import (
	"net/http"
	"strconv"
	"strings"

	llmerrors "github.com/ahrav/go-rubric/internal/llm/errors"
)

// classifyErrorType maps a status code and provider error code to an ErrorType.
// The provider code is checked first because it is more specific.
func classifyErrorType(statusCode int, errorCode string) llmerrors.ErrorType {
	lowerCode := strings.ToLower(errorCode)
	switch {
	case strings.Contains(lowerCode, "rate") || strings.Contains(lowerCode, "limit"):
		return llmerrors.ErrorTypeRateLimit
	case strings.Contains(lowerCode, "timeout"):
		return llmerrors.ErrorTypeTimeout
	case strings.Contains(lowerCode, "auth") || strings.Contains(lowerCode, "unauthorized"):
		return llmerrors.ErrorTypeAuth
	case strings.Contains(lowerCode, "permission") || strings.Contains(lowerCode, "forbidden"):
		return llmerrors.ErrorTypePermission
	case strings.Contains(lowerCode, "quota"):
		return llmerrors.ErrorTypeQuota
	case strings.Contains(lowerCode, "overloaded"):
		return llmerrors.ErrorTypeProvider
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return llmerrors.ErrorTypeRateLimit
	case http.StatusUnauthorized:
		return llmerrors.ErrorTypeAuth
	case http.StatusForbidden:
		return llmerrors.ErrorTypePermission
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return llmerrors.ErrorTypeTimeout
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return llmerrors.ErrorTypeValidation
	default:
		if statusCode >= http.StatusInternalServerError {
			return llmerrors.ErrorTypeProvider
		}
		return llmerrors.ErrorTypeUnknown
	}
}

// retryAfterSeconds parses a Retry-After header given in seconds.
// HTTP-date values are ignored.
func retryAfterSeconds(h http.Header) int {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func newProviderError(provider string, httpResp *http.Response, message, code string) *llmerrors.ProviderError {
	return &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: httpResp.StatusCode,
		Message:    message,
		Code:       code,
		Type:       classifyErrorType(httpResp.StatusCode, code),
		RetryAfter: retryAfterSeconds(httpResp.Header),
	}
}
