package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryQueueDeliversToHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewMemoryQueue(8)
	var seen atomic.Int32
	go func() {
		_ = queue.Consume(ctx, 2, func(ctx context.Context, taskID string) error {
			seen.Add(1)
			return nil
		})
	}()

	for i := 0; i < 5; i++ {
		if err := queue.Publish(ctx, fmt.Sprintf("t%d", i)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for seen.Load() < 5 {
		select {
		case <-deadline:
			t.Fatalf("只消费了 %d 条", seen.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMemoryQueuePublishAfterClose(t *testing.T) {
	queue := NewMemoryQueue(8)
	if err := queue.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("repeated close: %v", err)
	}
	if err := queue.Publish(context.Background(), "t1"); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestMemoryQueuePublishDuringClose(t *testing.T) {
	// 满容量的队列让 Publish 阻塞在发送上，此时并发 Close 必须
	// 以错误返回收尾而不是让发送方 panic。
	queue := NewMemoryQueue(1)
	if err := queue.Publish(context.Background(), "fill"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := queue.Publish(context.Background(), fmt.Sprintf("t%d", i))
			if err != nil && !errors.Is(err, ErrQueueClosed) {
				t.Errorf("unexpected publish error: %v", err)
			}
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	_ = queue.Close()
	wg.Wait()
}

func TestMemoryQueueConsumeStopsOnClose(t *testing.T) {
	queue := NewMemoryQueue(8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = queue.Consume(context.Background(), 2, func(ctx context.Context, taskID string) error {
			return nil
		})
	}()

	_ = queue.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("消费协程未随队列关闭退出")
	}
}
