package load

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/jub0bs/preflight"
	"github.com/sirupsen/logrus"
)

// A Sample is the outcome of one request, be it a preflight or an actual
// request. As in browsers, the elapsed time of an actual request includes
// that of the preflight that preceded it, if any.
type Sample struct {
	Label      string
	Method     string
	StatusCode int
	Elapsed    time.Duration
	Err        error
	Preflight  bool
}

// Failed reports whether s denotes a transport error or a non-2xx response.
func (s *Sample) Failed() bool {
	return s.Err != nil || s.StatusCode < 200 || 299 < s.StatusCode
}

// Stats aggregates the samples that share a label.
type Stats struct {
	Label     string
	Preflight bool
	Count     int
	Failures  int
	Total     time.Duration
	Max       time.Duration
}

// Mean returns the mean elapsed time of the aggregated samples.
func (s *Stats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// A Recorder aggregates samples by label. It is a [preflight.Listener],
// so it can be notified directly by Simulators.
//
// Recorders are safe for concurrent use by multiple goroutines.
type Recorder struct {
	logger logrus.FieldLogger

	mu    sync.Mutex
	stats map[string]*Stats
}

// NewRecorder returns a Recorder that logs every sample, at the debug level,
// to logger.
func NewRecorder(logger logrus.FieldLogger) *Recorder {
	return &Recorder{
		logger: logger,
		stats:  make(map[string]*Stats),
	}
}

// OnPreflight records res.
func (r *Recorder) OnPreflight(res *preflight.Result) {
	r.Record(&Sample{
		Label:      res.Label,
		Method:     res.Method,
		StatusCode: res.StatusCode,
		Elapsed:    res.Elapsed,
		Err:        res.Err,
		Preflight:  true,
	})
}

// Record records s.
func (r *Recorder) Record(s *Sample) {
	r.mu.Lock()
	st, found := r.stats[s.Label]
	if !found {
		st = &Stats{Label: s.Label, Preflight: s.Preflight}
		r.stats[s.Label] = st
	}
	st.Count++
	if s.Failed() {
		st.Failures++
	}
	st.Total += s.Elapsed
	st.Max = max(st.Max, s.Elapsed)
	r.mu.Unlock()

	fields := logrus.Fields{
		"label":     s.Label,
		"method":    s.Method,
		"status":    s.StatusCode,
		"elapsed":   s.Elapsed,
		"preflight": s.Preflight,
	}
	if s.Err != nil {
		r.logger.WithFields(fields).WithError(s.Err).Warn("request failed")
		return
	}
	r.logger.WithFields(fields).Debug("sample")
}

// Summary returns a snapshot of the aggregated statistics, sorted by label.
func (r *Recorder) Summary() []Stats {
	r.mu.Lock()
	res := make([]Stats, 0, len(r.stats))
	for _, st := range r.stats {
		res = append(res, *st)
	}
	r.mu.Unlock()
	slices.SortFunc(res, func(a, b Stats) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return res
}
