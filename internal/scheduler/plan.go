package scheduler

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidPlan is returned when load shape parameters cannot produce a plan.
var ErrInvalidPlan = errors.New("invalid load plan")

type TestType string

const (
	Load   TestType = "load"
	Stress TestType = "stress"
	Spike  TestType = "spike"
	Soak   TestType = "soak"
)

// SoakMultiplier and SoakRampUpSeconds turn a load test into a soak test.
const (
	SoakMultiplier    = 5
	SoakRampUpSeconds = 30
)

// ParseTestType accepts any letter case.
func ParseTestType(s string) (TestType, error) {
	switch t := TestType(strings.ToLower(strings.TrimSpace(s))); t {
	case Load, Stress, Spike, Soak:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown test type %q", ErrInvalidPlan, s)
	}
}

// Params are the caller-facing knobs of a run.
type Params struct {
	TestType        TestType
	DurationSeconds int
	TargetRPS       int
	ConcurrentUsers int
	RampUpSeconds   int
}

func (p Params) validate() error {
	var problems []string
	if p.DurationSeconds < 0 {
		problems = append(problems, "duration must be >= 0")
	}
	if p.TargetRPS < 0 {
		problems = append(problems, "target rps must be >= 0")
	}
	if p.ConcurrentUsers < 0 {
		problems = append(problems, "concurrent users must be >= 0")
	}
	if p.RampUpSeconds < 0 {
		problems = append(problems, "ramp-up must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(problems, "; "))
	}
	return nil
}

// Phase issues Count requests, pausing Delay after every PaceEvery spawns.
// Kind groups phases of the same role, e.g. every ramp-up second.
type Phase struct {
	Name      string
	Kind      string
	Count     int
	Delay     time.Duration
	PaceEvery int
}

// Duration is the pacing time the phase spends, ignoring request latency.
func (p Phase) Duration() time.Duration {
	if p.PaceEvery <= 0 || p.Count <= 0 {
		return 0
	}
	return time.Duration(p.Count/p.PaceEvery) * p.Delay
}

// Plan expands params into the phases of the matching load shape.
func Plan(p Params) ([]Phase, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	switch p.TestType {
	case Load:
		return loadPhases(p.TargetRPS, p.DurationSeconds, p.RampUpSeconds), nil
	case Stress:
		return stressPhases(p.TargetRPS, p.DurationSeconds, p.ConcurrentUsers), nil
	case Spike:
		return spikePhases(p.TargetRPS, p.DurationSeconds), nil
	case Soak:
		return loadPhases(p.TargetRPS, p.DurationSeconds*SoakMultiplier, SoakRampUpSeconds), nil
	default:
		return nil, fmt.Errorf("%w: unknown test type %q", ErrInvalidPlan, p.TestType)
	}
}

// TotalRequests sums the request counts of phases.
func TotalRequests(phases []Phase) int {
	total := 0
	for _, ph := range phases {
		total += ph.Count
	}
	return total
}

// loadPhases ramps linearly to target over ramp seconds, one phase per
// second, then holds target for the rest of the duration.
func loadPhases(target, duration, ramp int) []Phase {
	phases := make([]Phase, 0, ramp+1)
	for i := 0; i < ramp; i++ {
		rate := float64(target) * float64(i+1) / float64(ramp)
		phases = append(phases, Phase{
			Name:      fmt.Sprintf("ramp-up %d/%d", i+1, ramp),
			Kind:      "ramp-up",
			Count:     int(math.Floor(rate)),
			Delay:     pacing(rate),
			PaceEvery: 1,
		})
	}

	steady := int(math.Floor(float64(target) * float64(duration-ramp)))
	if steady < 0 {
		steady = 0
	}
	phases = append(phases, Phase{
		Name:      "steady",
		Kind:      "steady",
		Count:     steady,
		Delay:     pacing(float64(target)),
		PaceEvery: 1,
	})
	return phases
}

// stressPhases doubles rate and users and only pauses once per block of
// users spawns.
func stressPhases(target, duration, users int) []Phase {
	rate := target * 2
	every := users * 2
	if every < 1 {
		every = 1
	}
	return []Phase{{
		Name:      "stress",
		Kind:      "stress",
		Count:     rate * duration,
		Delay:     pacing(float64(rate)),
		PaceEvery: every,
	}}
}

// spikePhases splits duration into thirds at half, triple and half the
// target rate.
func spikePhases(target, duration int) []Phase {
	third := duration / 3
	phase := func(name string, rate float64) Phase {
		return Phase{
			Name:      name,
			Kind:      name,
			Count:     int(rate * float64(third)),
			Delay:     pacing(rate),
			PaceEvery: 1,
		}
	}
	normal := float64(target) / 2
	return []Phase{
		phase("baseline", normal),
		phase("spike", float64(target)*3),
		phase("recovery", normal),
	}
}

// pacing is the inter-spawn delay for rate; one second when rate is not
// positive.
func pacing(rate float64) time.Duration {
	if rate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / rate)
}
