/*
Package cfgerrors provides functionalities for programmatically handling
configuration errors produced by package [github.com/jub0bs/preflight]
and by the load plans of command preflightload.

Most users of package [github.com/jub0bs/preflight] have no use for this
package. However, tools that let their users write load plans (e.g. via some
Web portal) may find it useful: it indeed allows them to report
configuration mistakes via custom, human-friendly error messages.
*/
package cfgerrors

import (
	"fmt"
	"iter"
)

// A CacheExpiryOutOfBoundsError indicates a default cache-expiry value
// that's either too low or too high.
//
// For more details, see
// [github.com/jub0bs/preflight.Config.DefaultCacheExpiryInSeconds].
type CacheExpiryOutOfBoundsError struct {
	Value   int // the unacceptable value that was specified
	Default int // expiry used if DefaultCacheExpiryInSeconds is 0
	Max     int // maximum expiry permitted by this library
	Disable int // sentinel value for disabling caching by default
}

func (err *CacheExpiryOutOfBoundsError) Error() string {
	const tmpl = "preflight: out-of-bounds default cache expiry %d (default: %d; max: %d; disable caching: %d)"
	return fmt.Sprintf(tmpl, err.Value, err.Default, err.Max, err.Disable)
}

// An InvalidLabelSuffixError indicates a label suffix that contains
// control characters.
//
// For more details, see [github.com/jub0bs/preflight.Config.LabelSuffix].
type InvalidLabelSuffixError struct {
	Value string // the unacceptable value that was specified
}

func (err *InvalidLabelSuffixError) Error() string {
	const tmpl = "preflight: invalid label suffix %q"
	return fmt.Sprintf(tmpl, err.Value)
}

// An UnacceptableMethodError indicates an unacceptable method in a load plan.
// The Reason field may take one of three values:
//   - "missing": no method was specified;
//   - "invalid": the method is invalid;
//   - "forbidden": the method is forbidden by the Fetch standard
//     (CONNECT, TRACE, and TRACK), so no browser would send it.
type UnacceptableMethodError struct {
	Value  string // the unacceptable value that was specified
	Reason string // missing | invalid | forbidden
}

func (err *UnacceptableMethodError) Error() string {
	if err.Reason == "missing" {
		return "preflight: missing method"
	}
	const tmpl = "preflight: %s method %q"
	return fmt.Sprintf(tmpl, err.Reason, err.Value)
}

// An UnacceptableHeaderNameError indicates an invalid request-header name
// in a load plan.
type UnacceptableHeaderNameError struct {
	Value string // the unacceptable value that was specified
}

func (err *UnacceptableHeaderNameError) Error() string {
	const tmpl = "preflight: invalid request-header name %q"
	return fmt.Sprintf(tmpl, err.Value)
}

// An UnacceptableOriginError indicates an Origin request-header value,
// in a load plan, that is not a valid [serialized origin].
//
// [serialized origin]: https://html.spec.whatwg.org/multipage/browsers.html#ascii-serialisation-of-an-origin
type UnacceptableOriginError struct {
	Value string // the unacceptable value that was specified
}

func (err *UnacceptableOriginError) Error() string {
	const tmpl = "preflight: invalid origin %q"
	return fmt.Sprintf(tmpl, err.Value)
}

// An UnacceptableURLError indicates an unacceptable target URL in a
// load plan.
// The Reason field may take one of two values:
//   - "invalid": the URL cannot be parsed or lacks a host;
//   - "scheme": the URL's scheme is neither http nor https.
type UnacceptableURLError struct {
	Value  string // the unacceptable value that was specified
	Reason string // invalid | scheme
}

func (err *UnacceptableURLError) Error() string {
	if err.Reason == "scheme" {
		const tmpl = "preflight: URL %q has a scheme other than http and https"
		return fmt.Sprintf(tmpl, err.Value)
	}
	const tmpl = "preflight: invalid URL %q"
	return fmt.Sprintf(tmpl, err.Value)
}

// An UnacceptablePlanSettingError indicates an unacceptable plan-level
// setting in a load plan.
// The Field field may take one of the following values:
//   - "requests": the plan lists no requests (Value is then empty);
//   - "users": the number of virtual users is negative or exceeds Max;
//   - "iterations": the number of iterations is negative;
//   - "thinkTime": the think time is malformed or negative;
//   - "timeout": the timeout is malformed or not positive.
type UnacceptablePlanSettingError struct {
	Field string // requests | users | iterations | thinkTime | timeout
	Value string // the unacceptable value that was specified
	Max   int    // maximum permitted value (users only)
}

func (err *UnacceptablePlanSettingError) Error() string {
	switch err.Field {
	case "requests":
		return "preflight: plan has no requests"
	case "users":
		const tmpl = "preflight: users must be non-negative and at most %d, got %s"
		return fmt.Sprintf(tmpl, err.Max, err.Value)
	case "iterations":
		const tmpl = "preflight: negative iterations %s"
		return fmt.Sprintf(tmpl, err.Value)
	case "thinkTime":
		const tmpl = "preflight: invalid think time %q"
		return fmt.Sprintf(tmpl, err.Value)
	default:
		const tmpl = "preflight: invalid %s %q"
		return fmt.Sprintf(tmpl, err.Field, err.Value)
	}
}

// All returns an iterator over the configuration errors contained in
// err's error tree. The order is unspecified and may change from one release
// to the next. All only supports error values returned by
// [github.com/jub0bs/preflight.NewSimulator],
// [github.com/jub0bs/preflight.Simulator.Reconfigure], and the validation
// of load plans; it should not be called on any other error value.
func All(err error) iter.Seq[error] {
	return func(yield func(error) bool) {
		every(err, yield)
	}
}

func every(err error, f func(error) bool) bool {
	switch err := err.(type) {
	// Note that there's no need for any "interface { Unwrap() error }" case
	// because nowhere do we "wrap" errors; we only ever "join" them.
	case interface{ Unwrap() []error }:
		for _, err := range err.Unwrap() {
			if !every(err, f) {
				return false
			}
		}
		return true
	default:
		return f(err)
	}
}
