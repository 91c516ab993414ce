package docstore

import (
	"context"
	"testing"
	"time"
)

func Test_WriteQueue_Submit_Runs_Tasks_In_Order(t *testing.T) {
	t.Parallel()

	q := newWriteQueue(1)
	t.Cleanup(q.close)

	var order []int

	for i := 0; i < 5; i++ {
		i := i

		_, err := q.submit(context.Background(), func(ctx context.Context) (any, error) {
			order = append(order, i)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("submit(%d): %v", i, err)
		}
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want sequential 0..4", order)
		}
	}
}

func Test_WriteQueue_Cancellation_Does_Not_Interrupt_InFlight_Task(t *testing.T) {
	t.Parallel()

	q := newWriteQueue(1)
	t.Cleanup(q.close)

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		_, _ = q.submit(ctx, func(ctx context.Context) (any, error) {
			close(started)
			time.Sleep(30 * time.Millisecond)
			close(finished)
			return nil, nil
		})
	}()

	<-started
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("in-flight task was interrupted by context cancellation")
	}
}

func Test_WriteQueue_Submit_After_Close_Returns_ErrClosed(t *testing.T) {
	t.Parallel()

	q := newWriteQueue(1)

	_, err := q.submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	q.close()

	_, err = q.submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != ErrClosed {
		t.Fatalf("submit after close: err = %v, want %v", err, ErrClosed)
	}
}
