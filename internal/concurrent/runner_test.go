package concurrent

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunKeepsInputOrder(t *testing.T) {
	runner := NewRunner[int, string](RunnerConfig{MaxConcurrency: 3})
	items := []int{5, 1, 4, 2, 3}

	res := runner.Run(items, func(i int, item int, messages chan<- string) (string, error) {
		// later items finish first
		time.Sleep(time.Duration(len(items)-i) * time.Millisecond)
		messages <- fmt.Sprintf("item %d done", i)
		return fmt.Sprintf("doc-%d", item), nil
	})

	require.Equal(t, []string{"doc-5", "doc-1", "doc-4", "doc-2", "doc-3"}, res.Results)
	require.Equal(t, 0, res.Failed())
}

func TestRunErrorsPerIndex(t *testing.T) {
	runner := NewRunner[string, int](RunnerConfig{LogPrefix: "test", Logger: zap.NewNop().Sugar()})
	bad := errors.New("malformed line")

	res := runner.Run([]string{"ok", "bad", "ok"}, func(_ int, item string, _ chan<- string) (int, error) {
		if item == "bad" {
			return 0, bad
		}
		return len(item), nil
	})

	require.Equal(t, 1, res.Failed())
	require.NoError(t, res.Errors[0])
	require.ErrorIs(t, res.Errors[1], bad)
	require.NoError(t, res.Errors[2])
	require.Equal(t, []int{2, 0, 2}, res.Results)
}

func TestRunRespectsMaxConcurrency(t *testing.T) {
	const limit = 2
	var running, peak atomic.Int32

	runner := NewRunner[int, struct{}](RunnerConfig{MaxConcurrency: limit})
	res := runner.Run(make([]int, 10), func(int, int, chan<- string) (struct{}, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return struct{}{}, nil
	})

	require.Len(t, res.Results, 10)
	require.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestRunEmpty(t *testing.T) {
	res := NewRunner[int, int](RunnerConfig{}).Run(nil, func(int, int, chan<- string) (int, error) {
		t.Fatal("worker called without items")
		return 0, nil
	})
	require.Empty(t, res.Results)
	require.Equal(t, 0, res.Failed())
}
