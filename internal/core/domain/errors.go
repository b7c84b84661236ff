package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy for everything the backend or the transport can do to us.
// The gateway maps HTTP outcomes onto these; everything above the gateway
// matches with errors.Is / errors.As and never inspects status codes.
var (
	// ErrNetworkUnavailable: the request never completed (DNS, dial,
	// timeout). Optimistic state is rolled back; the caller may retry.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrUnauthorized: 401. The session token is no longer accepted; the
	// session store turns this into exactly one forced logout.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden: 403. The identity is valid but lacks permission. The
	// session stays intact.
	ErrForbidden = errors.New("forbidden")

	// ErrServer: 5xx. Generic backend failure.
	ErrServer = errors.New("server error")

	// ErrUnknownRole: a role string outside the closed set reached a
	// deserialization boundary.
	ErrUnknownRole = errors.New("unknown role")

	// ErrNotAuthenticated: an operation that requires a live identity was
	// invoked without one.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ValidationError carries field-level detail for a rejected input, either
// detected locally before a request is issued or reported by the backend as
// a 4xx with a field map. No state is mutated when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(msgs, "; ")
}

// Retryable reports whether repeating the request is a sensible option to
// offer the user. Retries are never issued automatically: a blind retry of a
// favorite or rating toggle could duplicate the mutation.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrServer)
}
