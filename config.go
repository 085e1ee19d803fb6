package preflight

import (
	"errors"
	"time"

	"github.com/jub0bs/preflight/cfgerrors"
)

// A Config configures a Simulator. The zero value is a valid configuration
// that yields the default behavior described below.
// Attempts to use settings described as "prohibited" result in a failure
// to build the desired simulator.
//
// # LabelSuffix
//
// LabelSuffix is appended to the label of a request (see [WithLabel]) in
// order to produce the label of the corresponding preflight [Result].
// If LabelSuffix is empty, "-preflight" is used.
// Specifying a suffix that contains ASCII control characters is prohibited.
//
// # KeepCacheAcrossIterations
//
// By default, a Simulator's preflight cache is cleared whenever
// [*Simulator.IterationStarted] is called, so that each iteration of a load
// test behaves like a fresh browser session.
// KeepCacheAcrossIterations, when set, preserves the cache across
// iterations; entries still expire as usual.
//
// # DefaultCacheExpiryInSeconds
//
// DefaultCacheExpiryInSeconds configures how long, in seconds, the
// permissions granted by a preflight response are cached when that response
// lacks a valid [Access-Control-Max-Age] header.
// The zero value causes a Simulator to use [the default max-age value]
// used by browsers: 5 seconds.
// The special value -1 causes such responses not to be cached at all.
// Values lower than -1 or greater than 86400 (24 hours) are prohibited.
//
// [Access-Control-Max-Age]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Max-Age
// [the default max-age value]: https://fetch.spec.whatwg.org/#http-access-control-max-age
type Config struct {
	// Precludes comparability, unkeyed struct literals, and conversion to and
	// from third-party types.
	_ [0]func()

	LabelSuffix                 string `json:"label_suffix,omitempty" yaml:"labelSuffix,omitempty"`
	KeepCacheAcrossIterations   bool   `json:"keep_cache_across_iterations,omitempty" yaml:"keepCacheAcrossIterations,omitempty"`
	DefaultCacheExpiryInSeconds int    `json:"default_cache_expiry_in_seconds,omitempty" yaml:"defaultCacheExpiryInSeconds,omitempty"`
}

const defaultLabelSuffix = "-preflight"

type internalConfig struct {
	labelSuffix        string
	clearEachIteration bool
	defaultExpiry      time.Duration
}

func newInternalConfig(cfg *Config) (*internalConfig, error) {
	if cfg == nil {
		return nil, nil
	}
	icfg := internalConfig{
		clearEachIteration: !cfg.KeepCacheAcrossIterations,
	}

	// Accumulate errors in a slice so as to call errors.Join at most once.
	errs := icfg.validateLabelSuffix(nil, cfg.LabelSuffix)
	errs = icfg.validateDefaultCacheExpiry(errs, cfg.DefaultCacheExpiryInSeconds)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &icfg, nil
}

func (icfg *internalConfig) validateLabelSuffix(errs []error, suffix string) []error {
	if suffix == "" {
		icfg.labelSuffix = defaultLabelSuffix
		return errs
	}
	for i := range len(suffix) {
		if b := suffix[i]; b < ' ' || b == 0x7f {
			err := &cfgerrors.InvalidLabelSuffixError{Value: suffix}
			return append(errs, err)
		}
	}
	icfg.labelSuffix = suffix
	return errs
}

func (icfg *internalConfig) validateDefaultCacheExpiry(errs []error, delta int) []error {
	const (
		// see https://fetch.spec.whatwg.org/#http-access-control-max-age
		defaultMaxAge = 5
		// Firefox's cap, which is the most generous among browsers;
		// see https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Max-Age#delta-seconds.
		upperBound = 86400
		// sentinel value for disabling caching by default
		disableCaching = -1
	)
	switch {
	case delta < disableCaching || upperBound < delta:
		err := &cfgerrors.CacheExpiryOutOfBoundsError{
			Value:   delta,
			Default: defaultMaxAge,
			Max:     upperBound,
			Disable: disableCaching,
		}
		return append(errs, err)
	case delta == disableCaching:
		icfg.defaultExpiry = 0
	case delta == 0:
		icfg.defaultExpiry = defaultMaxAge * time.Second
	default:
		icfg.defaultExpiry = time.Duration(delta) * time.Second
	}
	return errs
}

// newConfig returns a Config on the basis of icfg.
// The soundness of the result is guaranteed only if icfg is the result of a
// previous call to newInternalConfig.
func newConfig(icfg *internalConfig) *Config {
	if icfg == nil {
		return nil
	}
	cfg := Config{
		LabelSuffix:               icfg.labelSuffix,
		KeepCacheAcrossIterations: !icfg.clearEachIteration,
	}
	if icfg.defaultExpiry == 0 {
		cfg.DefaultCacheExpiryInSeconds = -1
	} else {
		cfg.DefaultCacheExpiryInSeconds = int(icfg.defaultExpiry / time.Second)
	}
	return &cfg
}
