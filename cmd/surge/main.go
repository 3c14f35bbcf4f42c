package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/torosent/surge/internal/config"
	"github.com/torosent/surge/internal/executor"
	"github.com/torosent/surge/internal/loadtester"
	"github.com/torosent/surge/internal/logging"
	"github.com/torosent/surge/internal/output"
	"github.com/torosent/surge/internal/scheduler"
	"github.com/torosent/surge/internal/telemetry"
	"github.com/torosent/surge/internal/threshold"
	"github.com/torosent/surge/internal/tracing"
)

const progressInterval = time.Second

// ErrThresholdsFailed is returned when at least one threshold did not pass.
var ErrThresholdsFailed = errors.New("thresholds failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	thresholds, err := threshold.ParseAll(cfg.Thresholds)
	if err != nil {
		return err
	}
	req, err := newRequest(cfg)
	if err != nil {
		return err
	}

	rec := telemetry.New()
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, rec, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	execOpts := []executor.Option{
		executor.WithClient(executor.NewClient(cfg.MaxInFlight)),
		executor.WithTimeout(cfg.Timeout),
		executor.WithTracing(tp),
		executor.WithTelemetry(rec),
	}
	if cfg.LogErrors {
		execOpts = append(execOpts, executor.WithErrorLog(logger))
	}

	lt := loadtester.New(
		loadtester.WithDoer(executor.New(execOpts...)),
		loadtester.WithMaxInFlight(cfg.MaxInFlight),
		loadtester.WithRateLimit(cfg.RateLimit),
		loadtester.WithLogger(logger),
		loadtester.WithTelemetry(rec),
	)

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(lt, progressInterval, stderr)
		progress.Start()
	}

	summary, runErr := lt.RunLoadTest(ctx, req)
	if progress != nil {
		progress.Stop()
	}
	if summary == nil {
		return runErr
	}
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		logger.WithError(runErr).Warn("load test interrupted, reporting partial results")
	}

	results := threshold.Evaluate(thresholds, *summary)
	if err := output.Write(stdout, output.Format(cfg.Output), output.NewReport(*summary, results)); err != nil {
		return err
	}
	if !threshold.Passed(results) {
		return ErrThresholdsFailed
	}
	return nil
}

func newRequest(cfg *config.Config) (loadtester.Request, error) {
	testType, err := scheduler.ParseTestType(string(cfg.TestType))
	if err != nil {
		return loadtester.Request{}, err
	}
	body, err := cfg.RequestBody()
	if err != nil {
		return loadtester.Request{}, err
	}
	return loadtester.Request{
		URL:             cfg.TargetURL,
		Method:          cfg.Method,
		Headers:         cfg.Headers,
		Body:            body,
		TestType:        testType,
		DurationSeconds: cfg.DurationSeconds,
		TargetRPS:       cfg.TargetRPS,
		ConcurrentUsers: cfg.ConcurrentUsers,
		RampUpSeconds:   cfg.RampUpSeconds,
	}, nil
}

// serveMetrics exposes the recorder on /metrics until the returned function
// is called.
func serveMetrics(addr string, rec *telemetry.Recorder, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", ln.Addr().String()).Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
