package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/torosent/surge/internal/collector"
	"github.com/torosent/surge/internal/executor"
	"github.com/torosent/surge/internal/logging"
	"github.com/torosent/surge/internal/pool"
	"github.com/torosent/surge/internal/telemetry"
)

// Sink receives results as requests complete. It must be safe for
// concurrent use.
type Sink interface {
	Append(collector.Result)
}

// Run is everything scoped to one execution of a load shape.
type Run struct {
	ID      string
	Params  Params
	Request executor.Request
	Results Sink
}

// Stats describes what the scheduler did during a run.
type Stats struct {
	Phases       int
	Issued       int64
	PeakInFlight int64
	Duration     time.Duration
}

type Options struct {
	Doer        executor.Doer
	Pacer       Pacer               // defaults to TimerPacer
	MaxInFlight int                 // defaults to pool.DefaultSize
	RateLimit   int                 // hard ceiling in requests per second, 0 disables
	Logger      *log.Logger         // defaults to discarding
	Telemetry   *telemetry.Recorder // optional
}

// Scheduler spawns requests following the phases of a load shape.
type Scheduler struct {
	opt Options
}

func New(opt Options) *Scheduler {
	if opt.Pacer == nil {
		opt.Pacer = TimerPacer{}
	}
	if opt.MaxInFlight <= 0 {
		opt.MaxInFlight = pool.DefaultSize
	}
	if opt.RateLimit < 0 {
		opt.RateLimit = 0
	}
	return &Scheduler{opt: opt}
}

// Run plans the load shape and issues its requests. Every spawned request
// is awaited before Run returns, including after ctx is cancelled; requests
// already in flight are not interrupted. Request failures are recorded in
// the sink and never stop the run.
func (s *Scheduler) Run(ctx context.Context, run Run) (Stats, error) {
	start := time.Now()
	phases, err := Plan(run.Params)
	if err != nil {
		return Stats{}, err
	}

	group := pool.New(s.opt.MaxInFlight)

	logger := s.entry(run)
	logger.WithFields(log.Fields{
		"phases":        len(phases),
		"requests":      TotalRequests(phases),
		"max_in_flight": group.Size(),
	}).Info("load test started")

	ceiling := newCeiling(s.opt.RateLimit)
	execCtx := context.WithoutCancel(ctx)

	var nextID atomic.Int64
	var issued int64
	var runErr error

	for _, phase := range phases {
		if runErr != nil {
			break
		}
		logger.WithFields(log.Fields{
			"phase":  phase.Name,
			"count":  phase.Count,
			"delay":  phase.Delay,
			"pacing": phase.Duration(),
		}).Debug("phase started")

		n, err := s.runPhase(ctx, execCtx, run, phase, group, ceiling, &nextID)
		issued += n
		runErr = err
	}

	group.Wait()

	stats := Stats{
		Phases:       len(phases),
		Issued:       issued,
		PeakInFlight: group.Peak(),
		Duration:     time.Since(start),
	}
	fields := log.Fields{
		"issued":          stats.Issued,
		"peak_in_flight":  stats.PeakInFlight,
		"elapsed_seconds": stats.Duration.Seconds(),
	}
	if runErr != nil {
		logger.WithFields(fields).WithError(runErr).Warn("load test stopped early")
	} else {
		logger.WithFields(fields).Info("load test finished")
	}
	return stats, runErr
}

func (s *Scheduler) runPhase(ctx, execCtx context.Context, run Run, phase Phase, group *pool.Group, ceiling *rate.Limiter, nextID *atomic.Int64) (int64, error) {
	every := phase.PaceEvery
	if every < 1 {
		every = 1
	}

	var issued int64
	for i := 0; i < phase.Count; i++ {
		if err := ctx.Err(); err != nil {
			return issued, err
		}
		if ceiling != nil {
			if err := ceiling.Wait(ctx); err != nil {
				return issued, err
			}
		}

		id := nextID.Add(1) - 1
		err := group.Go(ctx, func() {
			res := s.opt.Doer.Execute(execCtx, id, run.Request)
			run.Results.Append(res)
		})
		if err != nil {
			return issued, err
		}
		issued++
		s.opt.Telemetry.RequestScheduled(string(run.Params.TestType), phase.Kind)

		if (i+1)%every == 0 {
			if err := s.opt.Pacer.Pause(ctx, phase.Delay); err != nil {
				return issued, err
			}
		}
	}
	return issued, nil
}

func (s *Scheduler) entry(run Run) *log.Entry {
	logger := s.opt.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return logger.WithFields(log.Fields{
		"run_id":    run.ID,
		"test_type": run.Params.TestType,
	})
}
