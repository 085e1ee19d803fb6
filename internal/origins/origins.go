package origins

import (
	"net/netip"
	"strconv"
	"strings"
)

const (
	schemeHostSep = "://"     // scheme-host separator
	hostPortSep   = ':'       // host-port separator
	labelSep      = '.'       // DNS-label separator
	maxUint16     = 1<<16 - 1 // maximum value for uint16 type
)

const (
	// maxHostLen is the maximum length of a host, which is dominated by
	// the maximum length of an (absolute) domain name (253);
	// see https://devblogs.microsoft.com/oldnewthing/20120412-00/?p=7873.
	maxHostLen = 253
	// maxSchemeLen is the maximum tolerated length for schemes.
	maxSchemeLen = 64
	// maxPortLen is the maximum length of a port's decimal representation.
	maxPortLen = len("65535")
)

// Origin represents a (tuple) [Web origin].
//
// [Web origin]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
type Origin struct {
	// Scheme is the origin's scheme.
	Scheme string
	// Host is the origin's host, without brackets in the case of
	// an IPv6 address.
	Host string
	// Port is the origin's port (if any).
	// The zero value marks the absence of an explicit port.
	Port int
}

// Parse parses str, which is expected to be the value of an Origin
// request header, into an [Origin] structure.
// Contrary to the origin parsing performed by CORS middleware, Parse is
// strict: load plans are written by people who can fix them, and a request
// carrying a malformed Origin header would not exercise CORS at all.
// The null origin is rejected.
func Parse(str string) (Origin, bool) {
	const maxOriginLen = maxSchemeLen + len(schemeHostSep) + 2 + maxHostLen + 1 + maxPortLen
	var o Origin
	if len(str) > maxOriginLen {
		return o, false
	}
	scheme, rest, ok := strings.Cut(str, schemeHostSep)
	if !ok || !isScheme(scheme) {
		return o, false
	}
	host, rest, ok := parseHost(rest)
	if !ok {
		return o, false
	}
	var port int // assume no port at first
	if rest != "" {
		if rest[0] != hostPortSep {
			return o, false
		}
		port, ok = parsePort(rest[1:])
		if !ok {
			return o, false
		}
	}
	o = Origin{
		Scheme: scheme,
		Host:   host,
		Port:   port,
	}
	return o, true
}

// String returns the ASCII serialization of o.
func (o Origin) String() string {
	var sb strings.Builder
	sb.WriteString(o.Scheme)
	sb.WriteString(schemeHostSep)
	if strings.IndexByte(o.Host, hostPortSep) >= 0 {
		sb.WriteByte('[')
		sb.WriteString(o.Host)
		sb.WriteByte(']')
	} else {
		sb.WriteString(o.Host)
	}
	if o.Port != 0 {
		sb.WriteByte(hostPortSep)
		sb.WriteString(strconv.Itoa(o.Port))
	}
	return sb.String()
}

// isScheme reports whether str is a valid, lowercase URI scheme;
// see https://www.rfc-editor.org/rfc/rfc3986.html#section-3.1.
func isScheme(str string) bool {
	if str == "" || len(str) > maxSchemeLen || !isLowerAlpha(str[0]) {
		return false
	}
	for i := 1; i < len(str); i++ {
		b := str[i]
		if !isLowerAlpha(b) && !isDigit(b) && b != '+' && b != '-' && b != '.' {
			return false
		}
	}
	return true
}

// parseHost parses a host, which must be either a bracketed IPv6 address
// or a sequence of non-empty DNS labels (IPv4 addresses included).
// It returns the host, the unconsumed part of str, and a bool that indicates
// success or failure.
func parseHost(str string) (string, string, bool) {
	if strings.HasPrefix(str, "[") { // looks like an IPv6 address
		end := strings.IndexByte(str, ']')
		if end == -1 { // unmatched left bracket
			return "", str, false
		}
		addr, err := netip.ParseAddr(str[1:end])
		if err != nil || !addr.Is6() || addr.Zone() != "" {
			return "", str, false
		}
		return str[1:end], str[end+1:], true
	}
	var (
		i                       int
		previousByteWasLabelSep = true // host cannot start with a label separator
	)
	for ; i < len(str) && i <= maxHostLen; i++ {
		b := str[i]
		if b == labelSep {
			if previousByteWasLabelSep {
				return "", str, false
			}
			previousByteWasLabelSep = true
			continue
		}
		if !isASCIILabelByte(b) {
			break
		}
		previousByteWasLabelSep = false
	}
	if i == 0 || i > maxHostLen || previousByteWasLabelSep {
		return "", str, false
	}
	return str[:i], str[i:], true
}

// parsePort parses a port number, which must span the whole of str.
func parsePort(str string) (int, bool) {
	if str == "" || len(str) > maxPortLen || !isDigit(str[0]) || str[0] == '0' {
		return 0, false
	}
	var port int
	for i := range len(str) {
		if !isDigit(str[i]) {
			return 0, false
		}
		port = 10*port + int(str[i]-'0')
	}
	if maxUint16 < port {
		return 0, false
	}
	return port, true
}

func isLowerAlpha(b byte) bool {
	return 'a' <= b && b <= 'z'
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

// isASCIILabelByte returns true if b is an (ASCII) lowercase letter, digit,
// hyphen (0x2D), or underscore (0x5F).
func isASCIILabelByte(b byte) bool {
	return isLowerAlpha(b) || isDigit(b) || b == '-' || b == '_'
}
