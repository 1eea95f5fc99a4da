package llm

import "context"

// Request 描述一次文本生成调用。Instructions 对应系统提示词，
// Prompt 是渲染好的用户内容。
type Request struct {
	Instructions string
	Prompt       string
	Temperature  float64
}

// Response 是模型返回的文本补全。
type Response struct {
	Text string
}

// Client 定义了调用大模型的统一接口。实现必须把远端失败原样向上传递，
// 不做重试。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
