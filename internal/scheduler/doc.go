// Package scheduler turns a load shape into a timed sequence of requests.
//
// A run is planned as a list of [Phase] values, each issuing a number of
// requests with a fixed pause after every PaceEvery spawns:
//
//   - [Load]: a linear ramp-up, one phase per second, then a steady phase at
//     the target rate.
//   - [Stress]: double the target rate and users, pausing once per block of
//     users spawns.
//   - [Spike]: the duration split into thirds at half, triple and half the
//     target rate.
//   - [Soak]: a load test five times as long with a 30 second ramp-up.
//
// # Basic Usage
//
//	s := scheduler.New(scheduler.Options{Doer: executor.New()})
//	stats, err := s.Run(ctx, scheduler.Run{
//		ID:      runID,
//		Params:  scheduler.Params{TestType: scheduler.Load, DurationSeconds: 60, TargetRPS: 10},
//		Request: executor.Request{URL: "https://example.com"},
//		Results: collector.New(),
//	})
//
// Requests are fire-and-forget: the scheduler never waits for a response
// before spawning the next one, only for a free in-flight slot. Request
// failures are recorded as results and never stop a run. Cancelling ctx stops
// spawning; requests already in flight complete and are recorded before Run
// returns.
//
// # Pacing
//
// Pauses go through a [Pacer] so tests can run a plan without sleeping.
// [TimerPacer] sleeps for real. An optional RateLimit adds a hard
// requests-per-second ceiling on top of the shape's own pacing.
package scheduler
