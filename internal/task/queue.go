package task

import "context"

// Handler 消费一个排队的分析任务 ID。返回错误表示本次消费失败，
// 由具体队列实现决定是否重新投递。
type Handler func(ctx context.Context, taskID string) error

// Producer 把分析任务 ID 投递到队列。
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer 以固定数量的工作协程消费队列，直到上下文取消。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备投递与消费能力，守护进程用同一个实例做两件事。
type Queue interface {
	Producer
	Consumer
}
