/*
Package preflight simulates, on the client side, the
[CORS-preflight requests] that browsers send ahead of some
[cross-origin requests].

This package is meant for load-generation tools: HTTP clients written in Go
do not enforce the [CORS protocol], so a load test that merely replays the
requests a Web application issues underestimates the traffic that the
application's users actually generate. A [Simulator] closes that gap: for
every outgoing request, it decides whether a browser would have first issued
an [OPTIONS] preflight request and, if so, synthesizes that preflight,
sends it through the same [http.RoundTripper] as the actual request, and
caches the outcome so that subsequent requests don't trigger another
preflight before the server-declared cache lifetime expires.

The rules that a Simulator follows are a deliberate subset of
[the Fetch standard]:

  - A request requires preflight unless its method is GET, HEAD, or POST
    and it carries no CORS-unsafe request header.
    Forbidden request headers (Cookie, Origin, etc.) never require preflight;
    neither do Accept, Accept-Language, and Content-Language, or
    Content-Type and Range when their values are safelisted.
  - The preflight cache is keyed by URL. Methods and request-header names
    listed in [Access-Control-Allow-Methods] and
    [Access-Control-Allow-Headers] are cached for the number of seconds
    specified by [Access-Control-Max-Age], or for a configurable default
    when that header is absent.
  - A wildcard in Access-Control-Allow-Headers does not cover
    Authorization, which must be allowed explicitly.
  - Synthetic preflight requests carry the original request's Origin
    header but never its credentials.

Anomalies never result in errors: a request whose URL is unusable is simply
sent without preflight, and a server response that lacks CORS headers
grants nothing, which causes the next request to be preflighted again.

A Simulator's cache is safe for concurrent use, but, in order to mimic
browsers, you should give each simulated user (or goroutine) a Simulator
of its own.

[Access-Control-Allow-Headers]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Allow-Headers
[Access-Control-Allow-Methods]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Allow-Methods
[Access-Control-Max-Age]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Max-Age
[CORS protocol]: https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS
[CORS-preflight requests]: https://developer.mozilla.org/en-US/docs/Glossary/Preflight_request
[OPTIONS]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Methods/OPTIONS
[cross-origin requests]: https://fetch.spec.whatwg.org/#cors-request
[the Fetch standard]: https://fetch.spec.whatwg.org
*/
package preflight
