package limiter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunBounded_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	got, err := RunBounded(context.Background(), items, 2, func(_ context.Context, _ int, n int) int {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, n := range items {
		if got[i] != n*10 {
			t.Errorf("result[%d] = %d, want %d", i, got[i], n*10)
		}
	}
}

func TestRunBounded_RespectsLimit(t *testing.T) {
	var running, peak int32
	items := make([]int, 12)

	_, err := RunBounded(context.Background(), items, 3, func(_ context.Context, _ int, _ int) struct{} {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
	if p := atomic.LoadInt32(&peak); p < 2 {
		t.Errorf("peak concurrency = %d, expected workers to overlap", p)
	}
}

func TestRunBounded_DefaultLimit(t *testing.T) {
	var running, peak int32
	items := make([]int, 10)

	RunBounded(context.Background(), items, 0, func(_ context.Context, _ int, _ int) bool {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(3 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return true
	})
	if p := atomic.LoadInt32(&peak); p > DefaultLimit {
		t.Errorf("peak concurrency = %d, want <= %d", p, DefaultLimit)
	}
}

type outcome struct {
	val int
	err error
}

func TestRunBounded_FailuresAreIsolated(t *testing.T) {
	items := []int{1, 2, 3, 4}
	got, err := RunBounded(context.Background(), items, 2, func(_ context.Context, _ int, n int) outcome {
		if n == 2 {
			return outcome{err: errors.New("boom")}
		}
		return outcome{val: n}
	})
	if err != nil {
		t.Fatalf("batch error: %v", err)
	}
	if got[1].err == nil {
		t.Error("expected item 2 to carry its error")
	}
	for _, i := range []int{0, 2, 3} {
		if got[i].err != nil || got[i].val != items[i] {
			t.Errorf("item %d affected by sibling failure: %+v", i, got[i])
		}
	}
}

func TestRunBounded_PassesIndex(t *testing.T) {
	got, _ := RunBounded(context.Background(), []string{"a", "b", "c"}, 1, func(_ context.Context, i int, s string) int {
		return i
	})
	for i, v := range got {
		if v != i {
			t.Errorf("index %d reported as %d", i, v)
		}
	}
}

func TestRunBounded_CancellationStopsIssuing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started int32
	items := make([]int, 20)

	got, err := RunBounded(ctx, items, 2, func(ctx context.Context, _ int, _ int) int {
		if atomic.AddInt32(&started, 1) == 2 {
			cancel()
		}
		<-ctx.Done()
		return 1
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := atomic.LoadInt32(&started); n > 3 {
		t.Errorf("started %d workers after cancellation, want at most 3", n)
	}
	zero := 0
	for _, v := range got {
		if v == 0 {
			zero++
		}
	}
	if zero == 0 {
		t.Error("expected skipped items to keep zero values")
	}
}

func TestRunBounded_Empty(t *testing.T) {
	got, err := RunBounded(context.Background(), []int(nil), 3, func(context.Context, int, int) int { return 1 })
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}
