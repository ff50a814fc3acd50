package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is a non-2xx answer from the API. Reason carries the error text
// the API wrote (http.Error bodies such as "Forbidden" or "no permission"),
// falling back to the status text.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Reason string
	Body   []byte
}

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	reason := strings.TrimSpace(string(body))
	if reason == "" || strings.HasPrefix(reason, "<") {
		reason = http.StatusText(status)
	}
	return &HTTPError{
		Method: method,
		Path:   path,
		Status: status,
		Reason: truncate(reason, 200),
		Body:   body,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Reason)
}

// Kind classifies a failed API call by what the console should do about it.
type Kind int

const (
	// KindGeneric failures are surfaced to the operator as-is.
	KindGeneric Kind = iota
	// KindPermission means the session is valid but lacks the right.
	KindPermission
	// KindLogin means the session is missing or expired.
	KindLogin
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindLogin:
		return "login"
	default:
		return "generic"
	}
}

// Classify matches the failure reason against the phrases the API uses.
// "no permission" wins over "Forbidden" because the API answers permission
// failures with status 403 too.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}
	text := err.Error()
	var herr *HTTPError
	if errors.As(err, &herr) {
		text = herr.Reason + " " + http.StatusText(herr.Status)
		if strings.Contains(herr.Reason, "no permission") {
			return KindPermission
		}
	}
	switch {
	case strings.Contains(text, "no permission"):
		return KindPermission
	case strings.Contains(text, "Forbidden"):
		return KindLogin
	}
	return KindGeneric
}

// Reason returns the operator-facing text for a failure.
func Reason(err error) string {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
