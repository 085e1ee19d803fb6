package headers

import (
	"net/http"

	"golang.org/x/net/http/httpguts"
)

// header names in canonical format
const (
	// request headers copied to or set on CORS-preflight requests
	Origin = "Origin"
	Accept = "Accept"
	ACRM   = "Access-Control-Request-Method"
	ACRH   = "Access-Control-Request-Headers"

	// never copied to CORS-preflight requests
	Authorization = "Authorization"

	// preflight-only response headers
	ACAM = "Access-Control-Allow-Methods"
	ACAH = "Access-Control-Allow-Headers"
	ACMA = "Access-Control-Max-Age"
)

const (
	ValueWildcard     = "*"
	ValueAnyMediaType = "*/*"
)

const ValueSep = ","

// IsValid reports whether name is a valid header name,
// [per the Fetch standard].
//
// [per the Fetch standard]: https://fetch.spec.whatwg.org/#header-name
func IsValid(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// First, if k is present in hdrs, returns the first value associated to k
// in hdrs and true; otherwise, First returns "", false.
// Precondition: k is in canonical format (see [http.CanonicalHeaderKey]).
func First(hdrs http.Header, k string) (string, bool) {
	v, found := hdrs[k]
	if !found || len(v) == 0 {
		return "", false
	}
	return v[0], true
}
