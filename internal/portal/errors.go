package portal

import "errors"

// Failure taxonomy for provider calls. The dispatcher classifies every error
// through these sentinels before touching job or listing state.
var (
	// ErrConfiguration covers missing/inactive accounts, missing credentials
	// and unsupported modes. Terminal: retrying cannot fix configuration.
	ErrConfiguration = errors.New("portal configuration error")
	// ErrTransient covers network failures, timeouts, rate limits and 5xx
	// responses. Retryable subject to the attempt budget.
	ErrTransient = errors.New("transient portal error")
	// ErrPermanent covers provider-side validation rejections. Terminal even
	// on the first attempt: an invalid payload stays invalid.
	ErrPermanent = errors.New("permanent portal error")
)

// Retryable reports whether err should be retried. Unclassified errors count
// as retryable: never assume an unknown failure is permanent.
func Retryable(err error) bool {
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrPermanent) {
		return false
	}
	return true
}
