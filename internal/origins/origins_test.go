package origins

import (
	"math"
	"testing"
)

var parseCases = []struct {
	desc    string
	input   string
	want    Origin
	failure bool
}{
	{
		desc:    "null origin",
		input:   "null",
		failure: true,
	}, {
		desc:  "domain without port",
		input: "https://origin.co.nz",
		want: Origin{
			Scheme: "https",
			Host:   "origin.co.nz",
		},
	}, {
		desc:  "domain with port",
		input: "http://localhost:9090",
		want: Origin{
			Scheme: "http",
			Host:   "localhost",
			Port:   9090,
		},
	}, {
		desc:  "IPv4 address",
		input: "http://127.0.0.1:8080",
		want: Origin{
			Scheme: "http",
			Host:   "127.0.0.1",
			Port:   8080,
		},
	}, {
		desc:  "IPv6 address",
		input: "http://[::1]:9090",
		want: Origin{
			Scheme: "http",
			Host:   "::1",
			Port:   9090,
		},
	}, {
		desc:  "non-HTTP scheme",
		input: "connector://localhost",
		want: Origin{
			Scheme: "connector",
			Host:   "localhost",
		},
	}, {
		desc:    "invalid scheme",
		input:   "1ab://example.com",
		failure: true,
	}, {
		desc:    "uppercase scheme",
		input:   "HTTPS://example.com",
		failure: true,
	}, {
		desc:    "uppercase host",
		input:   "https://Example.com",
		failure: true,
	}, {
		desc:    "short input without scheme-host delimiter",
		input:   "ab",
		failure: true,
	}, {
		desc:    "empty hostport",
		input:   "https://",
		failure: true,
	}, {
		desc:    "path",
		input:   "https://example.com/index.html",
		failure: true,
	}, {
		desc:    "trailing dot",
		input:   "https://example.com.",
		failure: true,
	}, {
		desc:    "empty label",
		input:   "https://example..com",
		failure: true,
	}, {
		desc:    "brackets containing non-IPv6 chars",
		input:   "http://[example]:90",
		failure: true,
	}, {
		desc:    "unmatched left bracket",
		input:   "http://[::1:90",
		failure: true,
	}, {
		desc:    "port zero",
		input:   "http://example.com:0",
		failure: true,
	}, {
		desc:    "port with leading zero",
		input:   "http://example.com:080",
		failure: true,
	}, {
		desc:    "port too large",
		input:   "http://example.com:65536",
		failure: true,
	}, {
		desc:    "colon without port",
		input:   "http://example.com:",
		failure: true,
	},
}

func TestParse(t *testing.T) {
	for _, c := range parseCases {
		f := func(t *testing.T) {
			t.Parallel()
			o, ok := Parse(c.input)
			if ok == c.failure || ok && o != c.want {
				t.Errorf("%q: got %v, %t; want %v, %t", c.input, o, ok, c.want, !c.failure)
			}
		}
		t.Run(c.desc, f)
	}
}

func TestStringRoundTrips(t *testing.T) {
	for _, c := range parseCases {
		if c.failure {
			continue
		}
		if got := c.want.String(); got != c.input {
			t.Errorf("%v.String(): got %q; want %q", c.want, got, c.input)
		}
	}
}

// If this doesn't compile, maxUint16 doesn't match math.MaxUint16.
var _ = [1]int{}[maxUint16-math.MaxUint16]
