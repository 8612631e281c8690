package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a failure so callers can tell "fix your input" from
// "try again later" from "the service refused this content".
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindTimeout             Kind = "UpstreamTimeout"
	KindRateLimited         Kind = "UpstreamRateLimited"
	KindRejected            Kind = "UpstreamRejected"
	KindMalformedResponse   Kind = "UpstreamMalformedResponse"
	KindUnavailable         Kind = "UpstreamUnavailable"
	KindAssetUploadFailed   Kind = "AssetUploadFailed"
	KindPostCreationFailed  Kind = "PostCreationFailed"
	KindConcurrencyConflict Kind = "ConcurrencyConflict"
)

// Error is the single error type returned by every stage of the pipeline.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
	// RetryAfter is the delay the upstream asked for, zero when unknown.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a cause.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the outermost Kind in err's chain, or "" when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Has reports whether any Error in err's chain has the given kind.
func Has(err error, kind Kind) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok && fe.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Message is the human-readable part of err without the kind prefix.
func Message(err error) string {
	var fe *Error
	if !errors.As(err, &fe) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	switch {
	case fe.Msg != "" && fe.Err != nil:
		return fe.Msg + ": " + Message(fe.Err)
	case fe.Msg != "":
		return fe.Msg
	case fe.Err != nil:
		return Message(fe.Err)
	}
	return string(fe.Kind)
}

// Classify turns a transport-level error into an Error. Errors that already
// carry a Kind are returned as-is.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(KindTimeout, op, err)
	}
	return Wrap(KindUnavailable, op, err)
}

// FromStatus classifies a non-2xx HTTP response. body is a short excerpt of
// the response body used as the message.
func FromStatus(op string, status int, header http.Header, body string) *Error {
	msg := fmt.Sprintf("status %d", status)
	if body = strings.TrimSpace(body); body != "" {
		msg += ": " + body
	}
	e := &Error{Op: op, Msg: msg}
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = KindTimeout
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		if header != nil {
			e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
		}
	case status >= 500:
		e.Kind = KindUnavailable
	default:
		e.Kind = KindRejected
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
