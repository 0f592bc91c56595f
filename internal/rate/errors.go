package rate

import "errors"

// ErrBackendUnavailable wraps shared-counter connectivity failures.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")
