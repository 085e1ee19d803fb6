package headers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jub0bs/preflight/internal/util"
)

// MaxAge returns the number of seconds, as specified by the first
// Access-Control-Max-Age field line of hdrs, for which the results of the
// CORS-preflight request may be cached. The ok result is false if that field
// is absent or if its value is not a non-negative integer; in such cases,
// callers should fall back to a default.
func MaxAge(hdrs http.Header) (seconds int64, ok bool) {
	v, found := First(hdrs, ACMA)
	if !found {
		return 0, false
	}
	seconds, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}

// AllowHeaders returns the elements of the first
// Access-Control-Allow-Headers field line of hdrs, in order of appearance.
// A wildcard is returned as is. If that field is absent,
// AllowHeaders returns nil.
func AllowHeaders(hdrs http.Header) []string {
	return listElems(hdrs, ACAH)
}

// AllowMethods returns the elements of the first
// Access-Control-Allow-Methods field line of hdrs, in order of appearance.
// A wildcard is returned as is. If that field is absent,
// AllowMethods returns nil.
func AllowMethods(hdrs http.Header) []string {
	return listElems(hdrs, ACAM)
}

func listElems(hdrs http.Header, k string) []string {
	v, found := First(hdrs, k)
	if !found {
		return nil
	}
	return util.Fields(v, &listSepSet)
}

// Servers are lax about list syntax; any run of commas and whitespace
// separates two elements.
var listSepSet = util.MakeASCIISet(ValueSep + " \t\r\n\v\f")
