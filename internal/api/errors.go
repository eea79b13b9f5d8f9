package api

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
)

// Kind is the closed set of failure classes the remote boundary can produce.
// Callers match on Kind instead of inspecting transport errors themselves.
type Kind int

const (
	// KindUnreachable covers connection refused, DNS failure, timeouts and
	// every other transport-level failure that is not TLS related.
	KindUnreachable Kind = iota + 1

	// KindTLS covers certificate verification and TLS negotiation failures,
	// including rejected self-signed certificates and plain-http endpoints.
	KindTLS

	// KindServer is a non-2xx response whose error payload decoded cleanly.
	// Message carries the server's own text.
	KindServer

	// KindBadPayload is a non-2xx response whose error payload could not be
	// decoded, or a 2xx response with an undecodable body.
	KindBadPayload
)

// genericLoadError is shown when the server's error body is unusable.
const genericLoadError = "Error Loading Data"

// Error is the typed failure returned by every Client method.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindUnreachable:
		return "server unreachable"
	case KindTLS:
		return "tls negotiation failed"
	case KindServer:
		return fmt.Sprintf("server error (status %d)", e.StatusCode)
	default:
		return genericLoadError
	}
}

// AsError unwraps err to an *Error when possible, otherwise wraps it as an
// unreachable-class failure so callers always see a Kind.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindUnreachable, Message: err.Error()}
}

// classifyTransport maps an http.Client error onto a Kind.
func classifyTransport(err error) *Error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var (
		certInvalid   x509.CertificateInvalidError
		unknownAuth   x509.UnknownAuthorityError
		hostnameError x509.HostnameError
		recordHeader  tls.RecordHeaderError
		certVerify    *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &certVerify),
		errors.As(err, &certInvalid),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameError):
		return &Error{Kind: KindTLS, Message: "are you using a self-signed certificate?"}
	case errors.As(err, &recordHeader):
		return &Error{Kind: KindTLS, Message: "http is not supported, please use https"}
	}
	return &Error{Kind: KindUnreachable, Message: err.Error()}
}
