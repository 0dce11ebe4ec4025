package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by the credential store for unknown servers.
	ErrNotFound = errors.New("not found")
	// ErrNoToken means the token endpoint answered with neither a token nor an error.
	ErrNoToken = errors.New("token response carries no token")
	// ErrUnexpectedShape means a response decoded fine but is not the
	// collection an operation has to work on.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// TransportError covers everything that goes wrong before a usable JSON
// document is in hand: connection failures, non-2xx statuses and bodies that
// do not decode.
type TransportError struct {
	Function   string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transport %s (%s)", e.Function, e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is an exception reported by the web service inside an
// otherwise successful HTTP response.
type RemoteError struct {
	Function  string
	Exception string
	ErrorCode string
	Message   string
	DebugInfo string
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "remote %s", e.Function)
	if e.Exception != "" {
		fmt.Fprintf(&b, ": %s", e.Exception)
	}
	if e.ErrorCode != "" {
		fmt.Fprintf(&b, " [%s]", e.ErrorCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// RemoteErrorFrom extracts the exception envelope from a decoded response.
// Web service functions report failures as {"exception", "errorcode",
// "message"}; the token endpoint uses {"error", "errorcode"}. It returns nil
// for anything else.
func RemoteErrorFrom(function string, v Value) *RemoteError {
	if v.Kind() != KindObject {
		return nil
	}

	exception := v.Field("exception")
	errField := v.Field("error")

	if !isSet(exception) && !isSet(errField) {
		return nil
	}

	re := &RemoteError{
		Function:  function,
		Exception: exception.Text(),
		ErrorCode: v.Field("errorcode").Text(),
		Message:   v.Field("message").Text(),
		DebugInfo: v.Field("debuginfo").Text(),
	}

	if re.Message == "" {
		re.Message = errField.Text()
	}
	if re.Message == "" && errField.Kind() == KindObject {
		re.Message = errField.String()
	}

	return re
}

func isSet(v Value) bool {
	switch v.Kind() {
	case KindString:
		return v.Text() != ""
	case KindObject:
		return true
	default:
		return false
	}
}
