package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jub0bs/preflight/internal/load"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("PREFLIGHTLOAD_PLAN", "/etc/plan.yaml")
	opts, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "/etc/plan.yaml", opts.planPath)
	assert.Equal(t, "info", opts.logLevel)
	assert.Equal(t, "text", opts.logFormat)

	opts, err = parseFlags([]string{"-plan", "p.yaml", "-log-format", "json", "-metrics-addr", ":0"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "p.yaml", opts.planPath)
	assert.Equal(t, "json", opts.logFormat)
	assert.Equal(t, ":0", opts.metricsAddr)

	_, err = parseFlags([]string{"-bogus"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestConfigureLogger(t *testing.T) {
	logger := logrus.New()
	require.NoError(t, configureLogger(logger, &options{logLevel: "debug", logFormat: "json"}))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	assert.Error(t, configureLogger(logger, &options{logLevel: "loud", logFormat: "text"}))
	assert.Error(t, configureLogger(logger, &options{logLevel: "info", logFormat: "xml"}))
}

func TestRun(t *testing.T) {
	var preflights atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			preflights.Add(1)
			w.Header().Set("Access-Control-Allow-Methods", "DELETE")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	plan := fmt.Sprintf(`
iterations: 3
cors:
  keepCacheAcrossIterations: true
requests:
  - label: delete item
    method: DELETE
    url: %s/items/1
    headers:
      Origin: https://app.example.com
`, srv.URL)
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(plan), 0o600))

	var stdout, logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)
	err := run(context.Background(), []string{"-plan", path, "-metrics-addr", "127.0.0.1:0"}, &stdout, logger)
	require.NoError(t, err)

	assert.EqualValues(t, 1, preflights.Load())
	out := stdout.String()
	assert.Contains(t, out, "LABEL")
	assert.Regexp(t, `delete item\s+request\s+3\s+0`, out)
	assert.Regexp(t, `delete item-preflight\s+preflight\s+1\s+0`, out)
	assert.Contains(t, logs.String(), "run finished")
}

func TestRunWithInvalidPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requests: []\n"), 0o600))

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	err := run(context.Background(), []string{"-plan", path}, &bytes.Buffer{}, logger)
	assert.ErrorContains(t, err, "plan has no requests")
}

func TestPrintReport(t *testing.T) {
	report := load.Report{
		RunID:   "42",
		Elapsed: 1500 * time.Millisecond,
		Stats: []load.Stats{
			{Label: "a", Count: 2, Failures: 1, Total: 4 * time.Millisecond, Max: 3 * time.Millisecond},
			{Label: "a-preflight", Preflight: true, Count: 1, Total: time.Millisecond, Max: time.Millisecond},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, &report))
	const want = "run 42: 1.5s\n" +
		"LABEL        KIND       COUNT  FAILURES  MEAN  MAX\n" +
		"a            request    2      1         2ms   3ms\n" +
		"a-preflight  preflight  1      0         1ms   1ms\n"
	assert.Equal(t, want, buf.String())
}

func TestLoadEnvFile(t *testing.T) {
	const key = "PREFLIGHTLOAD_TEST_ENV_FILE_VAR"
	t.Cleanup(func() { os.Unsetenv(key) })

	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	_, found := os.LookupEnv(key)
	assert.False(t, found)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=plans/smoke.yaml\n"), 0o600))
	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "plans/smoke.yaml", os.Getenv(key))
}
