package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDo_ReturnsValue(t *testing.T) {
	p := New(2, zap.NewNop())
	defer p.Close()

	got, err := Do(context.Background(), p, func() (string, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want %q", got, "ok")
	}
}

func TestDo_PropagatesError(t *testing.T) {
	p := New(1, zap.NewNop())
	defer p.Close()

	want := errors.New("boom")
	_, err := Do(context.Background(), p, func() (int, error) { return 0, want })
	if !errors.Is(err, want) {
		t.Errorf("Do() error = %v, want %v", err, want)
	}
}

func TestDo_RecoversPanic(t *testing.T) {
	p := New(1, zap.NewNop())
	defer p.Close()

	_, err := Do(context.Background(), p, func() (int, error) { panic("bad") })
	if err == nil {
		t.Fatal("Do() error = nil, want panic error")
	}

	got, err := Do(context.Background(), p, func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("pool unusable after panic: got %d, err %v", got, err)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 3
	p := New(workers, zap.NewNop())
	defer p.Close()

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(context.Background(), p, func() (struct{}, error) {
				n := inFlight.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > workers {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), workers)
	}
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	p := New(1, zap.NewNop())
	defer p.Close()

	release := make(chan struct{})
	f := Submit(context.Background(), p, func() (int, error) {
		<-release
		return 1, nil
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestSubmit_AfterClose(t *testing.T) {
	p := New(1, zap.NewNop())
	p.Close()

	_, err := Do(context.Background(), p, func() (int, error) { return 1, nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Do() after Close error = %v, want ErrClosed", err)
	}
}

func TestDoOrRelease_ReleasesLateValue(t *testing.T) {
	p := New(1, zap.NewNop())
	defer p.Close()

	released := make(chan int, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := DoOrRelease(ctx, p, func() (int, error) {
		time.Sleep(100 * time.Millisecond)
		return 7, nil
	}, func(v int) { released <- v })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("DoOrRelease() error = %v, want DeadlineExceeded", err)
	}

	select {
	case v := <-released:
		if v != 7 {
			t.Errorf("released value = %d, want 7", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late value was never released")
	}
}

func TestDoOrRelease_InTimeSkipsRelease(t *testing.T) {
	p := New(1, zap.NewNop())
	defer p.Close()

	var releases atomic.Int32
	got, err := DoOrRelease(context.Background(), p, func() (string, error) { return "conn", nil },
		func(string) { releases.Add(1) })
	if err != nil {
		t.Fatalf("DoOrRelease() error = %v", err)
	}
	if got != "conn" {
		t.Errorf("DoOrRelease() = %q, want %q", got, "conn")
	}
	if n := releases.Load(); n != 0 {
		t.Errorf("release called %d times, want 0", n)
	}
}
