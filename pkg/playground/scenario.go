package playground

import (
	"fmt"
	"time"
)

// Scenario names a demonstration run.
type Scenario string

const (
	ScenarioSequential                 Scenario = "sequential"
	ScenarioParallel                   Scenario = "parallel"
	ScenarioSequentialWithError        Scenario = "sequential-with-error"
	ScenarioParallelWithError          Scenario = "parallel-with-error"
	ScenarioMultiple                   Scenario = "multiple"
	ScenarioCallbackWithError          Scenario = "callback-with-error"
	ScenarioLongComputation            Scenario = "long-computation"
	ScenarioLongComputationWithTimeout Scenario = "long-computation-with-timeout"
	ScenarioChannels                   Scenario = "channels"
	ScenarioExceptions                 Scenario = "exceptions"
)

var scenarios = []Scenario{
	ScenarioSequential,
	ScenarioParallel,
	ScenarioSequentialWithError,
	ScenarioParallelWithError,
	ScenarioMultiple,
	ScenarioCallbackWithError,
	ScenarioLongComputation,
	ScenarioLongComputationWithTimeout,
	ScenarioChannels,
	ScenarioExceptions,
}

// Scenarios lists every scenario in menu order.
func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarios))
	copy(out, scenarios)
	return out
}

// ParseScenario validates name.
func ParseScenario(name string) (Scenario, error) {
	for _, s := range scenarios {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// Timing converts nominal scenario milliseconds into run durations.
type Timing struct {
	// Scale multiplies every duration, the settle delay included.
	Scale float64

	// SettleDelay is the nominal pause between the INITIAL reset and the
	// first RUNNING publication.
	SettleDelay time.Duration
}

// DefaultTiming runs scenarios at nominal speed.
func DefaultTiming() Timing {
	return Timing{Scale: 1, SettleDelay: time.Second}
}

// ms scales n nominal milliseconds.
func (t Timing) ms(n int) time.Duration {
	return t.scale(time.Duration(n) * time.Millisecond)
}

func (t Timing) scale(d time.Duration) time.Duration {
	if t.Scale <= 0 {
		return d
	}
	return time.Duration(float64(d) * t.Scale)
}

func (t Timing) settle() time.Duration { return t.scale(t.SettleDelay) }
