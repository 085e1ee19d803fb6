// Command preflightload replays a plan of HTTP requests on behalf of
// virtual users and, like browsers do, precedes them with CORS-preflight
// requests where needed.
//
// Usage:
//
//	preflightload [-plan path] [-metrics-addr addr] [-log-level level] [-log-format text|json]
//
// Environment variables PREFLIGHTLOAD_PLAN and PREFLIGHTLOAD_LOG_LEVEL provide
// defaults for the corresponding flags; they may be defined in the file named
// by PREFLIGHTLOAD_ENV_FILE (".env" by default).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jub0bs/preflight/internal/load"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	envFile := getenvDefault("PREFLIGHTLOAD_ENV_FILE", ".env")
	if err := loadEnvFile(envFile); err != nil {
		logger.WithError(err).Fatal("load env file")
	}
	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		logger.WithError(err).Fatal("preflightload failed")
	}
}

type options struct {
	planPath    string
	metricsAddr string
	logLevel    string
	logFormat   string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("preflightload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.planPath, "plan", getenvDefault("PREFLIGHTLOAD_PLAN", "preflightload.yaml"), "path to the load plan")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "address of the metrics endpoint (overrides the plan's metricsAddr)")
	fs.StringVar(&opts.logLevel, "log-level", getenvDefault("PREFLIGHTLOAD_LOG_LEVEL", "info"), "log level")
	fs.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &opts, nil
}

func configureLogger(logger *logrus.Logger, opts *options) error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	switch opts.logFormat {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", opts.logFormat)
	}
	return nil
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *logrus.Logger) error {
	opts, err := parseFlags(args, logger.Out)
	if err != nil {
		return err
	}
	if err := configureLogger(logger, opts); err != nil {
		return err
	}

	plan, err := load.LoadPlan(opts.planPath)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if opts.metricsAddr != "" {
		plan.MetricsAddr = opts.metricsAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if plan.MetricsAddr != "" {
		shutdown, err := serveMetrics(plan.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	runner := load.NewRunner(plan,
		load.WithLogger(logger),
		load.WithRegisterer(reg),
	)
	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if report.Canceled {
		logger.Warn("run interrupted; reporting partial results")
	}
	return printReport(stdout, report)
}

// serveMetrics exposes the metrics gathered by reg on addr and returns a
// function that shuts the server down gracefully.
func serveMetrics(addr string, reg *prometheus.Registry, logger logrus.FieldLogger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithField("addr", ln.Addr().String()).Info("metrics endpoint listening")
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server error")
		}
	}()
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return shutdown, nil
}

func printReport(w io.Writer, report *load.Report) error {
	fmt.Fprintf(w, "run %s: %s\n", report.RunID, report.Elapsed.Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tKIND\tCOUNT\tFAILURES\tMEAN\tMAX")
	for _, st := range report.Stats {
		kind := "request"
		if st.Preflight {
			kind = "preflight"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			st.Label,
			kind,
			st.Count,
			st.Failures,
			st.Mean().Round(time.Microsecond),
			st.Max.Round(time.Microsecond),
		)
	}
	return tw.Flush()
}

// loadEnvFile adds the variables defined in path to the environment, without
// overriding the existing ones. A missing file is not an error.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
