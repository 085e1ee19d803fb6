package preflight_test

import (
	"encoding/json"
	"io"
	"reflect"
	"testing"

	"github.com/jub0bs/preflight"
	"github.com/jub0bs/preflight/cfgerrors"
	"gopkg.in/yaml.v3"
)

var cfgTypes = []reflect.Type{
	reflect.TypeFor[preflight.Config](),
}

// We want our exported struct types to be incomparable because, otherwise,
// client code could rely on their comparability.
func TestIncomparability(t *testing.T) {
	for _, typ := range cfgTypes {
		f := func(t *testing.T) {
			if typ.Comparable() {
				t.Errorf("type %v is comparable, but should not be", typ)
			}
		}
		t.Run(typ.String(), f)
	}
}

// We don't want client code to rely on unkeyed literals
// of our exported struct types.
func TestImpossibilityOfUnkeyedStructLiterals(t *testing.T) {
	for _, typ := range cfgTypes {
		f := func(t *testing.T) {
			var unexportedFields bool
			for i := range typ.NumField() {
				if !typ.Field(i).IsExported() {
					unexportedFields = true
					break
				}
			}
			if !unexportedFields {
				t.Errorf("type %v has no unexported fields, but should have at least one", typ)
			}
		}
		t.Run(typ.String(), f)
	}
}

func TestPossibilityToMarshalConfig(t *testing.T) {
	cfg := preflight.Config{
		LabelSuffix:                 "-cors",
		KeepCacheAcrossIterations:   true,
		DefaultCacheExpiryInSeconds: 30,
	}
	enc := json.NewEncoder(io.Discard)
	if err := enc.Encode(cfg); err != nil {
		t.Error("preflight.Config cannot be marshaled to JSON, but should be")
	}
}

// Load plans embed a Config in YAML.
func TestPossibilityToUnmarshalConfigFromYAML(t *testing.T) {
	const doc = `
labelSuffix: "-cors"
keepCacheAcrossIterations: true
defaultCacheExpiryInSeconds: 30
`
	var cfg preflight.Config
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatalf("preflight.Config cannot be unmarshaled from YAML: %v", err)
	}
	want := &preflight.Config{
		LabelSuffix:                 "-cors",
		KeepCacheAcrossIterations:   true,
		DefaultCacheExpiryInSeconds: 30,
	}
	assertConfigEqual(t, &cfg, want)
}

func TestConfig(t *testing.T) {
	cases := []struct {
		desc string
		cfg  *preflight.Config
		want *preflight.Config
	}{
		{
			desc: "passthrough",
			cfg:  nil,
		}, {
			desc: "zero value",
			cfg:  &preflight.Config{},
			want: &preflight.Config{
				LabelSuffix:                 "-preflight",
				DefaultCacheExpiryInSeconds: 5,
			},
		}, {
			desc: "custom suffix and kept cache",
			cfg: &preflight.Config{
				LabelSuffix:               " (preflight)",
				KeepCacheAcrossIterations: true,
			},
			want: &preflight.Config{
				LabelSuffix:                 " (preflight)",
				KeepCacheAcrossIterations:   true,
				DefaultCacheExpiryInSeconds: 5,
			},
		}, {
			desc: "caching disabled by default",
			cfg: &preflight.Config{
				DefaultCacheExpiryInSeconds: -1,
			},
			want: &preflight.Config{
				LabelSuffix:                 "-preflight",
				DefaultCacheExpiryInSeconds: -1,
			},
		}, {
			desc: "maximum default expiry",
			cfg: &preflight.Config{
				DefaultCacheExpiryInSeconds: 86400,
			},
			want: &preflight.Config{
				LabelSuffix:                 "-preflight",
				DefaultCacheExpiryInSeconds: 86400,
			},
		},
	}
	for _, tc := range cases {
		f := func(t *testing.T) {
			t.Parallel()
			var (
				s   *preflight.Simulator
				err error
			)
			if tc.cfg == nil {
				s = new(preflight.Simulator)
			} else {
				s, err = preflight.NewSimulator(*tc.cfg)
				if err != nil {
					t.Fatalf("failure to build simulator: %v", err)
				}
			}
			got := s.Config()
			assertConfigEqual(t, got, tc.want)
			// Reconfiguring a simulator with its own config is a no-op.
			if err := s.Reconfigure(got); err != nil {
				t.Fatalf("failure to reconfigure simulator: %v", err)
			}
			assertConfigEqual(t, s.Config(), tc.want)
		}
		t.Run(tc.desc, f)
	}
}

func assertConfigEqual(t *testing.T, got, want *preflight.Config) {
	t.Helper()
	if got == nil && want != nil {
		t.Fatal("got nil *Config; want non-nil")
	}
	if got != nil && want == nil {
		t.Fatal("got non-nil *Config; want nil")
	}
	if want == nil {
		return
	}
	if got.LabelSuffix != want.LabelSuffix {
		t.Errorf("LabelSuffix: got %q; want %q", got.LabelSuffix, want.LabelSuffix)
	}
	if got.KeepCacheAcrossIterations != want.KeepCacheAcrossIterations {
		const tmpl = "KeepCacheAcrossIterations: got %t; want %t"
		t.Errorf(tmpl, got.KeepCacheAcrossIterations, want.KeepCacheAcrossIterations)
	}
	if got.DefaultCacheExpiryInSeconds != want.DefaultCacheExpiryInSeconds {
		const tmpl = "DefaultCacheExpiryInSeconds: got %d; want %d"
		t.Errorf(tmpl, got.DefaultCacheExpiryInSeconds, want.DefaultCacheExpiryInSeconds)
	}
}

type invalidConfigTestCase struct {
	desc string
	cfg  *preflight.Config
	want []*errorMatcher
}

var invalidConfigTestCases = []invalidConfigTestCase{
	{
		desc: "default expiry too low",
		cfg: &preflight.Config{
			DefaultCacheExpiryInSeconds: -2,
		},
		want: []*errorMatcher{
			newErrorMatcher(&cfgerrors.CacheExpiryOutOfBoundsError{
				Value:   -2,
				Default: 5,
				Max:     86400,
				Disable: -1,
			}),
		},
	}, {
		desc: "default expiry too high",
		cfg: &preflight.Config{
			DefaultCacheExpiryInSeconds: 86401,
		},
		want: []*errorMatcher{
			newErrorMatcher(&cfgerrors.CacheExpiryOutOfBoundsError{
				Value:   86401,
				Default: 5,
				Max:     86400,
				Disable: -1,
			}),
		},
	}, {
		desc: "label suffix with control character",
		cfg: &preflight.Config{
			LabelSuffix: "-pre\nflight",
		},
		want: []*errorMatcher{
			newErrorMatcher(&cfgerrors.InvalidLabelSuffixError{
				Value: "-pre\nflight",
			}),
		},
	}, {
		desc: "multiple errors",
		cfg: &preflight.Config{
			LabelSuffix:                 "\x7f",
			DefaultCacheExpiryInSeconds: -10,
		},
		want: []*errorMatcher{
			newErrorMatcher(&cfgerrors.InvalidLabelSuffixError{
				Value: "\x7f",
			}),
			newErrorMatcher(&cfgerrors.CacheExpiryOutOfBoundsError{
				Value:   -10,
				Default: 5,
				Max:     86400,
				Disable: -1,
			}),
		},
	},
}

func TestIncorrectConfig(t *testing.T) {
	for _, tc := range invalidConfigTestCases {
		f := func(t *testing.T) {
			s, err := preflight.NewSimulator(*tc.cfg)
			if s != nil {
				t.Error("got non-nil *Simulator; want nil *Simulator")
			}
			if err == nil {
				t.Error("got nil error; want non-nil error")
				return
			}
			matched := make([]bool, len(tc.want))
		iterationOverErrorTree: // O(m * n) isn't ideal, but ok.
			for err := range cfgerrors.All(err) {
				for i, m := range tc.want {
					if matched[i] {
						continue
					}
					if m.matches(err) {
						matched[i] = true
						continue iterationOverErrorTree
					}
				}
				t.Errorf("unexpected error: %q", err)
			}
			for i, m := range tc.want {
				if !matched[i] {
					t.Errorf("missing error:    %q", m.err)
				}
			}
		}
		t.Run(tc.desc, f)
	}
}

func TestReconfigureWithInvalidConfigLeavesSimulatorUnchanged(t *testing.T) {
	s, err := preflight.NewSimulator(preflight.Config{LabelSuffix: "-x"})
	if err != nil {
		t.Fatalf("failure to build simulator: %v", err)
	}
	cfg := preflight.Config{DefaultCacheExpiryInSeconds: -5}
	if err := s.Reconfigure(&cfg); err == nil {
		t.Fatal("got nil error; want non-nil error")
	}
	want := &preflight.Config{
		LabelSuffix:                 "-x",
		DefaultCacheExpiryInSeconds: 5,
	}
	assertConfigEqual(t, s.Config(), want)
}

type errorMatcher struct {
	matches func(error) bool
	err     error
}

// newErrorMatcher returns an errorMatcher that matches an error whose dynamic
// value is a pointer to a value equal to the value that ptrToTargetValue
// points to.
func newErrorMatcher[T comparable, P PError[T]](ptrToTargetValue P) *errorMatcher {
	pred := func(err error) bool {
		ptr, ok := err.(P)
		if !ok {
			return false
		}
		if ptrToTargetValue == nil {
			return ptr == nil
		}
		return ptr != nil && *ptrToTargetValue == *ptr
	}
	return &errorMatcher{
		matches: pred,
		err:     ptrToTargetValue,
	}
}

// An PError[T] is an error of dynamic type *T.
type PError[T any] interface {
	error
	*T
}

func BenchmarkIncorrectConfig(b *testing.B) {
	for _, tc := range invalidConfigTestCases {
		f := func(b *testing.B) {
			b.ReportAllocs()
			for range b.N {
				if _, err := preflight.NewSimulator(*tc.cfg); err == nil {
					b.Fatal("got nil error; want non-nil error")
				}
			}
		}
		b.Run(tc.desc, f)
	}
}
