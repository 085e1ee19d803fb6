package preflight

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// A Result describes a preflight request sent by a [Simulator] and the
// outcome of that request.
type Result struct {
	// Label is the label of the original request followed by the
	// configured suffix.
	Label string
	// Method is the method of the preflight request, i.e. OPTIONS.
	Method string
	// URL is the target URL of both the original and the preflight request.
	URL string
	// RequestHeader holds the headers of the preflight request.
	RequestHeader http.Header
	// StatusCode and ResponseHeader are the status code and headers of the
	// response to the preflight request; they are zero if Err is non-nil.
	StatusCode     int
	ResponseHeader http.Header
	// Start is the instant at which the preflight request was sent
	// and Elapsed is the time it took to obtain its response.
	Start   time.Time
	Elapsed time.Duration
	// Err is the error, if any, that prevented the preflight request from
	// completing.
	Err error
}

// RawRequestHeader returns the headers of the preflight request
// in wire format, one field line per line.
func (r *Result) RawRequestHeader() string {
	return rawHeader(r.RequestHeader)
}

// RawResponseHeader returns the headers of the preflight response
// in wire format, one field line per line.
func (r *Result) RawResponseHeader() string {
	return rawHeader(r.ResponseHeader)
}

func rawHeader(h http.Header) string {
	var sb strings.Builder
	h.Write(&sb) // cannot fail
	return sb.String()
}

// A Listener is notified of every preflight request that a [Simulator]
// sends. Preflight requests that are suppressed because of a cache hit
// produce no notification.
//
// Listeners are called synchronously, from the goroutine that sends the
// original request; they must not modify the Result.
type Listener interface {
	OnPreflight(*Result)
}

// The ListenerFunc type is an adapter to allow the use of ordinary functions
// as listeners.
type ListenerFunc func(*Result)

// OnPreflight calls f(r).
func (f ListenerFunc) OnPreflight(r *Result) {
	f(r)
}

type labelKey struct{}

// WithLabel returns a copy of ctx that carries label.
// Load generators typically label each request of a test plan;
// attach the label to the request's context so that the corresponding
// preflight Result can be identified:
//
//	req = req.WithContext(preflight.WithLabel(req.Context(), "GET it"))
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelKey{}, label)
}

// Label returns the label carried by ctx, if any.
func Label(ctx context.Context) (string, bool) {
	label, ok := ctx.Value(labelKey{}).(string)
	return label, ok
}
