package concurrent

import (
	"sync"

	"go.uber.org/zap"
)

// WorkerFunc processes one item. It receives the item's position in the
// input and a channel for progress messages.
type WorkerFunc[T any, R any] func(index int, item T, messages chan<- string) (R, error)

// RunnerConfig configures the concurrent runner
type RunnerConfig struct {
	MaxConcurrency int                // 0 means unlimited concurrency
	LogPrefix      string             // Prefix for log messages
	Logger         *zap.SugaredLogger // nil means no logging
}

// Runner fans items out to workers and collects their outcomes in input
// order.
type Runner[T any, R any] struct {
	config RunnerConfig
}

// NewRunner creates a new concurrent runner with the given configuration
func NewRunner[T any, R any](config RunnerConfig) *Runner[T, R] {
	if config.LogPrefix == "" {
		config.LogPrefix = "Runner"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	return &Runner[T, R]{
		config: config,
	}
}

// RunResult holds one outcome per input item, at the item's index. Errors[i]
// is nil when item i succeeded.
type RunResult[R any] struct {
	Results []R
	Errors  []error
}

// Failed counts the items whose worker returned an error.
func (r RunResult[R]) Failed() int {
	n := 0
	for _, err := range r.Errors {
		if err != nil {
			n++
		}
	}
	return n
}

// Run executes the worker function for each item concurrently
func (r *Runner[T, R]) Run(items []T, worker WorkerFunc[T, R]) RunResult[R] {
	out := RunResult[R]{
		Results: make([]R, len(items)),
		Errors:  make([]error, len(items)),
	}
	if len(items) == 0 {
		return out
	}

	// Messages channel for logging
	var messagesWG sync.WaitGroup
	messages := make(chan string)
	messagesWG.Add(1)
	go func() {
		defer messagesWG.Done()
		for message := range messages {
			r.config.Logger.Debugf("%s: %s", r.config.LogPrefix, message)
		}
	}()

	var workersWg sync.WaitGroup

	// Throttle channel for limiting concurrency (if configured)
	var throttle chan struct{}
	if r.config.MaxConcurrency > 0 {
		throttle = make(chan struct{}, r.config.MaxConcurrency)
	}

	for i, item := range items {
		workersWg.Add(1)

		if throttle != nil {
			throttle <- struct{}{}
		}

		go func(i int, item T) {
			defer workersWg.Done()
			if throttle != nil {
				defer func() { <-throttle }()
			}

			// Each worker owns its own slot, so no locking is needed.
			out.Results[i], out.Errors[i] = worker(i, item, messages)
		}(i, item)
	}

	workersWg.Wait()
	close(messages)
	messagesWG.Wait()

	return out
}
