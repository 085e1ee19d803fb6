package preflight

import (
	"cmp"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jub0bs/preflight/internal/cache"
	"github.com/jub0bs/preflight/internal/headers"
	"github.com/jub0bs/preflight/internal/methods"
	"github.com/sirupsen/logrus"
)

// A Simulator simulates the CORS-preflight behavior of a browser.
// Call its [*Simulator.Wrap] method to apply it to a [http.RoundTripper].
//
// The zero value is ready to use but is a mere "passthrough" simulator,
// i.e. one that never sends any preflight request.
// To obtain a proper simulator, you should call [NewSimulator]
// and pass it a valid [Config].
//
// Each Simulator owns a preflight cache, which plays the role of a
// browser's. Load generators that simulate multiple users should create
// one Simulator per user and call [*Simulator.IterationStarted] whenever
// a user starts a new iteration of the test plan.
//
// A Simulator must not be copied after first use.
//
// Simulators are safe for concurrent use by multiple goroutines.
type Simulator struct {
	icfg      atomic.Pointer[internalConfig]
	cacheOnce sync.Once
	cache     *cache.Cache

	mu        sync.RWMutex // guards the fields below
	listeners []Listener
	logger    logrus.FieldLogger
	metrics   *Metrics
}

// NewSimulator creates a Simulator that behaves in accordance with cfg.
// If cfg is invalid, it returns a nil [*Simulator] and some non-nil error.
// Otherwise, it returns a pointer to a [Simulator] and a nil error.
//
// Mutating the fields of cfg after NewSimulator has returned a functioning
// simulator does not alter the latter's behavior.
// However, you can reconfigure a [Simulator] via its
// [*Simulator.Reconfigure] method.
//
// If you need to programmatically handle the configuration errors constitutive
// of the resulting error, rely on package [github.com/jub0bs/preflight/cfgerrors].
func NewSimulator(cfg Config) (*Simulator, error) {
	icfg, err := newInternalConfig(&cfg)
	if err != nil {
		return nil, err
	}
	var s Simulator
	s.icfg.Store(icfg)
	return &s, nil
}

// Reconfigure reconfigures s in accordance with cfg.
// If cfg is nil, it turns s into a passthrough simulator.
// If *cfg is invalid, it leaves s unchanged and returns some non-nil error.
// Otherwise, it successfully reconfigures s and returns a nil error.
// The following statement is guaranteed to be a no-op:
//
//	s.Reconfigure(s.Config())
//
// Reconfiguring a simulator leaves its preflight cache untouched.
func (s *Simulator) Reconfigure(cfg *Config) error {
	icfg, err := newInternalConfig(cfg)
	if err != nil {
		return err
	}
	s.icfg.Store(icfg)
	return nil
}

// Config returns a pointer to a deep copy of s's current configuration;
// if s is a passthrough simulator, it simply returns nil.
// The result may differ from the [Config] with which s was created or last
// reconfigured (defaults are made explicit), but the following statement is
// guaranteed to be a no-op:
//
//	s.Reconfigure(s.Config())
func (s *Simulator) Config() *Config {
	return newConfig(s.icfg.Load())
}

// SetListeners replaces the listeners that s notifies of the preflight
// requests it sends.
func (s *Simulator) SetListeners(ls ...Listener) {
	s.mu.Lock()
	s.listeners = ls
	s.mu.Unlock()
}

// SetLogger sets the logger that s uses to report anomalies (at the error
// level) and cache activity (at the debug level).
// If l is nil, s reverts to [logrus.StandardLogger].
func (s *Simulator) SetLogger(l logrus.FieldLogger) {
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
}

// SetMetrics sets the collectors that s updates. If m is nil, s records
// no metrics.
func (s *Simulator) SetMetrics(m *Metrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// IterationStarted signals that the simulated user has started a new
// iteration of the test plan. Unless s is configured to keep its cache
// across iterations, IterationStarted clears s's preflight cache.
func (s *Simulator) IterationStarted() {
	icfg := s.icfg.Load()
	if icfg == nil || !icfg.clearEachIteration {
		return
	}
	s.preflightCache().Clear()
}

// CacheLen returns the number of unexpired entries in s's preflight cache.
func (s *Simulator) CacheLen() int {
	return s.preflightCache().Len()
}

func (s *Simulator) preflightCache() *cache.Cache {
	s.cacheOnce.Do(func() {
		if s.cache == nil {
			s.cache = cache.New(nil)
		}
	})
	return s.cache
}

func (s *Simulator) collaborators() ([]Listener, logrus.FieldLogger, *Metrics) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var logger logrus.FieldLogger = logrus.StandardLogger()
	if s.logger != nil {
		logger = s.logger
	}
	return s.listeners, logger, s.metrics
}

// Wrap applies the simulator to the specified round tripper: the resulting
// round tripper performs the preflight check described in
// [*Simulator.Preflight] for each request and then forwards the request,
// unmodified, to rt. If rt is nil, [http.DefaultTransport] is used.
//
// Note that the actual request is sent regardless of the outcome of
// preflight; a Simulator reproduces the traffic of browsers, not their
// enforcement of the CORS protocol.
func (s *Simulator) Wrap(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		s.Preflight(req, rt)
		return rt.RoundTrip(req)
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Preflight determines whether a browser would precede req with a
// CORS-preflight request and, if so and if no unexpired entry of s's cache
// already covers req's method and headers, sends a preflight request
// through rt, caches the permissions granted by the response,
// notifies s's listeners, and returns the resulting [Result].
// In all other cases, Preflight returns nil.
//
// req itself is neither modified nor sent.
func (s *Simulator) Preflight(req *http.Request, rt http.RoundTripper) *Result {
	icfg := s.icfg.Load()
	if icfg == nil { // passthrough simulator
		return nil
	}
	listeners, logger, metrics := s.collaborators()
	if req.URL == nil || req.URL.Host == "" {
		logger.WithField("url", req.URL).Error("preflight: invalid request URL; skipping preflight")
		metrics.observe(OutcomeSkipped)
		return nil
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		metrics.observe(OutcomeSkipped)
		return nil
	}
	method := cmp.Or(req.Method, http.MethodGet)
	names := headers.PreflightHeaderNames(req.Header)
	if methods.IsSafelisted(method) && len(names) == 0 {
		// simple request; see https://fetch.spec.whatwg.org/#cors-preflight-fetch
		metrics.observe(OutcomeSimple)
		return nil
	}

	target := cacheURL(req.URL)
	label, ok := Label(req.Context())
	if !ok {
		label = target
	}
	logger = logger.WithFields(logrus.Fields{
		"url":    target,
		"method": method,
		"label":  label,
	})
	c := s.preflightCache()
	if c.IsGranted(target, method, names) {
		logger.Debug("preflight: still cached; skipping")
		metrics.observe(OutcomeCached)
		return nil
	}

	preq := newPreflightRequest(req, method, names)
	res := send(preq, rt)
	res.Label = label + icfg.labelSuffix
	res.URL = target
	metrics.observeResult(res)
	if res.Err != nil {
		logger.WithError(res.Err).Error("preflight: request failed")
	} else {
		ttl := icfg.defaultExpiry
		if maxAge, ok := headers.MaxAge(res.ResponseHeader); ok {
			ttl = time.Duration(min(maxAge, maxAgeSeconds)) * time.Second
		}
		logger.WithField("max_age", ttl.Seconds()).Debug("preflight: caching result")
		c.Populate(target,
			ttl,
			headers.AllowHeaders(res.ResponseHeader),
			headers.AllowMethods(res.ResponseHeader),
		)
	}
	for _, l := range listeners {
		l.OnPreflight(res)
	}
	return res
}

// the largest max-age value that fits in a time.Duration
const maxAgeSeconds = math.MaxInt64 / int64(time.Second)

// cacheURL returns the form of u used as a key in the preflight cache.
// Fragments are never sent to servers and are therefore ignored.
func cacheURL(u *url.URL) string {
	if u.Fragment == "" && u.RawFragment == "" {
		return u.String()
	}
	v := *u
	v.Fragment = ""
	v.RawFragment = ""
	return v.String()
}

// newPreflightRequest builds the CORS-preflight request that a browser
// would send ahead of req; see https://fetch.spec.whatwg.org/#cors-preflight-fetch.
// The base header set is Accept, Access-Control-Request-Method and
// Access-Control-Request-Headers; the latter is always set, possibly to the
// empty string. As an extension to that set, the Origin header of req, if
// any, is carried over, as browsers do. No other header of req is included;
// in particular, credentials (e.g. Authorization) never are.
func newPreflightRequest(req *http.Request, method string, names []string) *http.Request {
	preq := req.Clone(req.Context())
	preq.Method = http.MethodOptions
	preq.Body = http.NoBody
	preq.GetBody = nil
	preq.ContentLength = 0
	preq.TransferEncoding = nil
	preq.Trailer = nil
	preq.Close = false
	preq.URL.Fragment = ""
	preq.URL.RawFragment = ""

	hdrs := make(http.Header, 4)
	hdrs.Set(headers.Accept, headers.ValueAnyMediaType)
	hdrs.Set(headers.ACRM, method)
	hdrs.Set(headers.ACRH, strings.Join(names, headers.ValueSep))
	if origin, found := headers.First(req.Header, headers.Origin); found {
		hdrs.Set(headers.Origin, origin)
	}
	preq.Header = hdrs
	return preq
}

// maxDrainBytes bounds how much of a preflight response's body is read
// so that the underlying connection can be reused.
const maxDrainBytes = 64 << 10

func send(preq *http.Request, rt http.RoundTripper) *Result {
	res := Result{
		Method:        preq.Method,
		RequestHeader: preq.Header.Clone(),
		Start:         time.Now(),
	}
	resp, err := rt.RoundTrip(preq)
	if err != nil {
		res.Elapsed = time.Since(res.Start)
		res.Err = err
		return &res
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	resp.Body.Close()
	res.Elapsed = time.Since(res.Start)
	res.StatusCode = resp.StatusCode
	res.ResponseHeader = resp.Header
	return &res
}
