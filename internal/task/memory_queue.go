package task

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed 表示队列关闭后仍尝试投递。
var ErrQueueClosed = errors.New("队列已关闭")

// MemoryQueue 基于带缓冲 channel 的进程内队列，用于单机部署和测试。
type MemoryQueue struct {
	ch   chan string
	done chan struct{}

	closeOnce sync.Once
}

// NewMemoryQueue 创建容量为 size 的内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{
		ch:   make(chan string, size),
		done: make(chan struct{}),
	}
}

// Publish 实现 Producer。队列关闭后投递返回错误而不是 panic。
// ch 从不被 close，关闭状态只通过 done 广播，因此并发 Close 不会
// 让阻塞中的发送崩溃。
func (q *MemoryQueue) Publish(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- taskID:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume 实现 Consumer。所有工作协程退出后才返回。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			q.drain(ctx, handler)
		}()
	}
	select {
	case <-ctx.Done():
	case <-q.done:
	}
	wg.Wait()
	return ctx.Err()
}

// drain 逐条处理任务直到上下文取消或队列关闭。
// 处理错误不中断消费：状态回写由处理器负责。
func (q *MemoryQueue) drain(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case taskID := <-q.ch:
			_ = handler(ctx, taskID)
		}
	}
}

// Close 关闭队列，重复调用是安全的。
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	return nil
}
