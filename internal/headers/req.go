package headers

import (
	"net/http"
	"strings"

	"github.com/jub0bs/preflight/internal/methods"
	"github.com/jub0bs/preflight/internal/util"
)

// IsPreflightHeader reports whether a request header of the specified name
// and value would cause a browser to precede the request with a
// CORS-preflight request. The name is compared case-insensitively.
//
// The rules are a subset of the Fetch standard's notion of
// [CORS-unsafe request-header names]:
//   - forbidden request headers are never set by scripts and are ignored;
//   - a method-override header whose value is a forbidden method is ignored;
//   - a safelisted header whose value matches that header's safe grammar
//     is ignored;
//   - any other header requires preflight.
//
// [CORS-unsafe request-header names]: https://fetch.spec.whatwg.org/#cors-unsafe-request-header-names
func IsPreflightHeader(name, value string) bool {
	name = util.ByteLowercase(name)
	if IsForbiddenRequestHeaderName(name) {
		return false
	}
	if methodOverrideHeaderNames.Contains(name) && methods.IsForbidden(value) {
		return false
	}
	if isSafe, found := safelistedRequestHeaders[name]; found {
		return !isSafe(value)
	}
	return true
}

// PreflightHeaderNames returns the byte-lowercased names of the headers in
// hdrs that require preflight, sorted in lexicographical order and without
// duplicates. A name is included as soon as one of its values requires
// preflight. If no header in hdrs requires preflight, PreflightHeaderNames
// returns an empty slice.
func PreflightHeaderNames(hdrs http.Header) []string {
	names := make(util.Set)
	for name, values := range hdrs {
		for _, v := range values {
			if IsPreflightHeader(name, v) {
				names[util.ByteLowercase(name)] = struct{}{}
				break
			}
		}
	}
	return names.ToSortedSlice()
}

// IsForbiddenRequestHeaderName reports whether name is a
// forbidden request-header name [per the Fetch standard].
//
// Precondition: name is a valid and [byte-lowercase] header name.
//
// [byte-lowercase]: https://infra.spec.whatwg.org/#byte-lowercase
// [per the Fetch standard]: https://fetch.spec.whatwg.org/#forbidden-header-name
func IsForbiddenRequestHeaderName(name string) bool {
	return discreteForbiddenRequestHeaderNames.Contains(name) ||
		strings.HasPrefix(name, "proxy-") ||
		strings.HasPrefix(name, "sec-")
}

var discreteForbiddenRequestHeaderNames = util.NewSet(
	"accept-charset",
	"accept-encoding",
	"access-control-request-headers",
	"access-control-request-method",
	"connection",
	"content-length",
	"cookie",
	"cookie2",
	"date",
	"dnt",
	"expect",
	"host",
	"keep-alive",
	"origin",
	"referer",
	"set-cookie",
	"te",
	"trailer",
	"transfer-encoding",
	"upgrade",
	"via",
)

// see https://fetch.spec.whatwg.org/#forbidden-request-header
var methodOverrideHeaderNames = util.NewSet(
	"x-http-method",
	"x-http-method-override",
	"x-method-override",
)

// IsNonWildcardRequestHeaderName reports whether name is a
// [CORS non-wildcard request-header name], i.e. a name that a wildcard in
// Access-Control-Allow-Headers does not cover.
//
// Precondition: name is byte-lowercase.
//
// [CORS non-wildcard request-header name]: https://fetch.spec.whatwg.org/#cors-non-wildcard-request-header-name
func IsNonWildcardRequestHeaderName(name string) bool {
	return name == authorizationLower
}

const authorizationLower = "authorization"

// safelistedRequestHeaders maps byte-lowercased safelisted request-header
// names to a predicate that reports whether a value is safe for that name.
// Value comparisons are case-sensitive.
var safelistedRequestHeaders = map[string]func(string) bool{
	"accept":           anyValue,
	"accept-language":  anyValue,
	"content-language": anyValue,
	"content-type":     isSafelistedContentType,
	"range":            isSimpleRange,
}

func anyValue(string) bool { return true }

func isSafelistedContentType(v string) bool {
	return strings.HasPrefix(v, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(v, "multipart/form-data") ||
		strings.HasPrefix(v, "text/plain")
}

// isSimpleRange reports whether v is of the form bytes=<digits>-<digits>?,
// i.e. a single byte range with a mandatory start.
func isSimpleRange(v string) bool {
	v, found := strings.CutPrefix(v, "bytes=")
	if !found {
		return false
	}
	start, end, found := strings.Cut(v, "-")
	return found && start != "" && allDigits(start) && allDigits(end)
}

func allDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || '9' < s[i] {
			return false
		}
	}
	return true
}
