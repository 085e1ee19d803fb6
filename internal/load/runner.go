package load

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jub0bs/preflight"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// A Runner executes a [Plan]. Each virtual user owns a [preflight.Simulator]
// and thus a preflight cache of its own, much like each browser does.
type Runner struct {
	plan      *Plan
	transport http.RoundTripper
	logger    logrus.FieldLogger
	reg       prometheus.Registerer

	metrics *preflight.Metrics
	sims    atomic.Pointer[[]*preflight.Simulator] // those of the latest run
}

// An Option configures a [Runner].
type Option func(*Runner)

// WithTransport makes the Runner send requests through rt rather than
// through [http.DefaultTransport].
func WithTransport(rt http.RoundTripper) Option {
	return func(r *Runner) {
		r.transport = rt
	}
}

// WithLogger sets the Runner's logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRegisterer makes the Runner register its metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runner) {
		r.reg = reg
	}
}

// NewRunner returns a Runner for plan, which must be the result of
// [LoadPlan] or [ParsePlan].
// The Runner's collectors are registered here, once, so that it can be run
// any number of times; as a result, NewRunner panics if another Runner has
// already registered its collectors with the same [prometheus.Registerer].
func NewRunner(plan *Plan, opts ...Option) *Runner {
	r := &Runner{
		plan:      plan,
		transport: http.DefaultTransport,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = preflight.NewMetrics(r.reg)
	if r.reg != nil {
		promauto.With(r.reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "preflightload",
				Name:      "cache_entries",
				Help:      "Unexpired entries in the preflight caches of all virtual users.",
			},
			r.cacheEntries,
		)
	}
	return r
}

// cacheEntries sums the cache sizes of the virtual users of the latest run.
func (r *Runner) cacheEntries() float64 {
	sims := r.sims.Load()
	if sims == nil {
		return 0
	}
	var n int
	for _, sim := range *sims {
		n += sim.CacheLen()
	}
	return float64(n)
}

// A Report summarizes a run.
type Report struct {
	RunID    string
	Started  time.Time
	Elapsed  time.Duration
	Stats    []Stats
	Canceled bool
}

// Run executes the plan and blocks until every virtual user is done or
// ctx is canceled. Cancellation is not an error: the partial report is
// returned with Canceled set.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	logger := r.logger.WithField("run_id", runID)
	rec := NewRecorder(logger)

	sims := make([]*preflight.Simulator, r.plan.Users)
	for i := range sims {
		sim, err := preflight.NewSimulator(r.plan.CORS)
		if err != nil {
			return nil, err
		}
		sim.SetListeners(rec)
		sim.SetLogger(logger.WithField("user", i))
		sim.SetMetrics(r.metrics)
		sims[i] = sim
	}
	r.sims.Store(&sims)

	logger.WithFields(logrus.Fields{
		"users":      r.plan.Users,
		"iterations": r.plan.Iterations,
		"requests":   len(r.plan.Requests),
	}).Info("run started")
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, sim := range sims {
		g.Go(func() error {
			return r.runUser(gctx, sim, rec)
		})
	}
	err := g.Wait()
	report := Report{
		RunID:   runID,
		Started: start,
		Elapsed: time.Since(start),
		Stats:   rec.Summary(),
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		report.Canceled = true
		err = nil
	}
	logger.WithField("elapsed", report.Elapsed).Info("run finished")
	return &report, err
}

func (r *Runner) runUser(ctx context.Context, sim *preflight.Simulator, rec *Recorder) error {
	client := http.Client{
		Transport: sim.Wrap(r.transport),
		Timeout:   r.plan.timeoutDur,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	for range r.plan.Iterations {
		sim.IterationStarted()
		for i := range r.plan.Requests {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.send(ctx, &client, &r.plan.Requests[i], rec); err != nil {
				return err
			}
		}
		if r.plan.thinkDur > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.plan.thinkDur):
			}
		}
	}
	return nil
}

// send sends the request described by pr and records the outcome.
// Transport errors are recorded, not returned.
func (r *Runner) send(ctx context.Context, client *http.Client, pr *Request, rec *Recorder) error {
	req, err := pr.newHTTPRequest(ctx)
	if err != nil {
		return err
	}
	s := Sample{
		Label:  pr.Label,
		Method: pr.Method,
	}
	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Elapsed = time.Since(start)
		s.Err = err
		rec.Record(&s)
		return nil
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
	s.Elapsed = time.Since(start)
	s.StatusCode = res.StatusCode
	rec.Record(&s)
	return nil
}
