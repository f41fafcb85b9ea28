package shared

import (
	"errors"

	"github.com/avryx-pos/avryx-pos/internal/platform/httpx"
)

// UserSafeMessage converts an error into text that can be shown to the
// operator without leaking internals. Unknown errors collapse to a generic
// message; callers that have a more specific message attach it before this
// point.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, httpx.ErrNotFound):
		return "Product not found"
	case errors.Is(err, httpx.ErrUnauthorized):
		return "Session expired. Sign in again to continue"
	case errors.Is(err, httpx.ErrUnavailable):
		return "Store service is unreachable. Try again"
	case errors.Is(err, httpx.ErrConflict):
		return "Another request is still in progress"
	default:
		return "Something went wrong. Try again"
	}
}
