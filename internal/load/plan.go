// Package load implements a small load generator that replays a plan of
// HTTP requests on behalf of virtual users, each of which behaves like a
// browser with respect to CORS preflight.
package load

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jub0bs/preflight"
	"github.com/jub0bs/preflight/cfgerrors"
	"github.com/jub0bs/preflight/internal/headers"
	"github.com/jub0bs/preflight/internal/methods"
	"github.com/jub0bs/preflight/internal/origins"
	"gopkg.in/yaml.v3"
)

// A Plan describes a load test.
type Plan struct {
	Requests    []Request        `yaml:"requests"`
	Users       int              `yaml:"users"`
	Iterations  int              `yaml:"iterations"`
	ThinkTime   string           `yaml:"thinkTime"`
	Timeout     string           `yaml:"timeout"`
	CORS        preflight.Config `yaml:"cors"`
	MetricsAddr string           `yaml:"metricsAddr"`

	// compiled
	thinkDur   time.Duration
	timeoutDur time.Duration
}

// A Request is one step of a plan; every virtual user sends each of
// a plan's requests, in order, once per iteration.
type Request struct {
	Label   string            `yaml:"label"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

const (
	defaultTimeout = 30 * time.Second
	maxUsers       = 10_000
)

// LoadPlan reads the YAML plan at path, applies defaults, and validates it.
func LoadPlan(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	plan, err := ParsePlan(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan is like [LoadPlan] but reads the plan from b.
// If the plan is invalid, the resulting error is the join of all the
// validation errors, which [cfgerrors.All] can iterate over.
func ParsePlan(b []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(b, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := plan.compile(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Plan) compile() error {
	var errs []error
	if len(p.Requests) == 0 {
		err := &cfgerrors.UnacceptablePlanSettingError{Field: "requests"}
		errs = append(errs, err)
	}
	if p.Users < 0 || p.Users > maxUsers {
		err := &cfgerrors.UnacceptablePlanSettingError{
			Field: "users",
			Value: strconv.Itoa(p.Users),
			Max:   maxUsers,
		}
		errs = append(errs, err)
	}
	if p.Iterations < 0 {
		err := &cfgerrors.UnacceptablePlanSettingError{
			Field: "iterations",
			Value: strconv.Itoa(p.Iterations),
		}
		errs = append(errs, err)
	}
	p.Users = cmp.Or(p.Users, 1)
	p.Iterations = cmp.Or(p.Iterations, 1)
	if p.ThinkTime != "" {
		d, err := time.ParseDuration(p.ThinkTime)
		if err != nil || d < 0 {
			err := &cfgerrors.UnacceptablePlanSettingError{
				Field: "thinkTime",
				Value: p.ThinkTime,
			}
			errs = append(errs, err)
		}
		p.thinkDur = d
	}
	p.timeoutDur = defaultTimeout
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil || d <= 0 {
			err := &cfgerrors.UnacceptablePlanSettingError{
				Field: "timeout",
				Value: p.Timeout,
			}
			errs = append(errs, err)
		}
		p.timeoutDur = d
	}
	if _, err := preflight.NewSimulator(p.CORS); err != nil {
		errs = append(errs, err)
	}
	for i := range p.Requests {
		errs = p.Requests[i].compile(errs)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (r *Request) compile(errs []error) []error {
	switch {
	case r.Method == "":
		r.Method = http.MethodGet
	case !methods.IsValid(r.Method):
		err := &cfgerrors.UnacceptableMethodError{
			Value:  r.Method,
			Reason: "invalid",
		}
		errs = append(errs, err)
	case methods.IsForbidden(r.Method):
		err := &cfgerrors.UnacceptableMethodError{
			Value:  r.Method,
			Reason: "forbidden",
		}
		errs = append(errs, err)
	}
	u, err := url.Parse(r.URL)
	switch {
	case err != nil || u.Host == "":
		err := &cfgerrors.UnacceptableURLError{
			Value:  r.URL,
			Reason: "invalid",
		}
		errs = append(errs, err)
	case u.Scheme != "http" && u.Scheme != "https":
		err := &cfgerrors.UnacceptableURLError{
			Value:  r.URL,
			Reason: "scheme",
		}
		errs = append(errs, err)
	}
	for name, value := range r.Headers {
		if !headers.IsValid(name) {
			err := &cfgerrors.UnacceptableHeaderNameError{Value: name}
			errs = append(errs, err)
			continue
		}
		if http.CanonicalHeaderKey(name) != headers.Origin {
			continue
		}
		if _, ok := origins.Parse(value); !ok {
			err := &cfgerrors.UnacceptableOriginError{Value: value}
			errs = append(errs, err)
		}
	}
	if r.Label == "" {
		r.Label = r.Method + " " + r.URL
	}
	return errs
}

// newHTTPRequest builds the request described by r.
func (r *Request) newHTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	ctx = preflight.WithLabel(ctx, r.Label)
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}
	for name, value := range r.Headers {
		req.Header.Set(name, value)
	}
	return req, nil
}
