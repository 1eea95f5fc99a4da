// Package supervisor 负责把自然语言查询路由到对应的执行器。
// 路由决策由大模型给出，调度本身是确定性的。
package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"PowerPulse/internal/agent"
	xerrors "PowerPulse/internal/errors"
	"PowerPulse/internal/llm"
)

const (
	// CodeRoutingFailure 表示路由阶段失败（大模型不可用或返回无法解析的内容）。
	CodeRoutingFailure xerrors.Code = "SUPERVISOR_ROUTING_FAILURE"
)

func init() {
	xerrors.Register(CodeRoutingFailure, xerrors.Attributes{
		Message:   "query routing failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// AgentTypePowerAnalysis 是当前唯一支持的执行器类型。
const AgentTypePowerAnalysis = "power_analysis"

// 调度阶段的固定回复文案。
const (
	msgMissingPaths = "Error: Missing required file paths for power analysis."
	msgMissingFiles = "Error: One or both specified files do not exist."
	msgUnsupported  = "Sorry, I don't have an agent that can handle this request. Currently, I support power analysis tasks."
)

// routingPrompt 要求大模型输出路由决策的 JSON。
const routingPrompt = `You are a supervisor agent responsible for routing user queries to the appropriate specialized agents.
Currently, the system supports these agent types:

1. Power Analysis Agent - Compares two weeks of power usage data and provides a comprehensive analysis.

Analyze the user query and determine which agent should handle it. If the query requires power analysis,
extract the paths to the two JSON files that need to be compared.

User Query: %QUERY%

Return a JSON object with:
1. "agent_type": The type of agent to use (use "power_analysis" for the Power Analysis Agent)
2. "agent_args": A dictionary of arguments needed by the agent (for Power Analysis, this should include "week1_path" and "week2_path")

Example response:
` + "```json" + `
{
  "agent_type": "power_analysis",
  "agent_args": {
    "week1_path": "/path/to/week1.json",
    "week2_path": "/path/to/week2.json"
  }
}
` + "```" + `

If the query doesn't match any supported agent functionality, respond with:
` + "```json" + `
{
  "agent_type": null,
  "agent_args": {}
}
` + "```" + `
`

// Router 由大模型路由后把查询分发给具体执行器。
type Router struct {
	llmClient llm.Client
	analyzer  Analyzer
}

// Analyzer 是两周对比分析的执行器抽象。
type Analyzer interface {
	Execute(ctx context.Context, req agent.AnalysisRequest) (*agent.AnalysisResult, error)
}

// Decision 是大模型给出的路由决策。
type Decision struct {
	AgentType *string        `json:"agent_type"`
	AgentArgs map[string]any `json:"agent_args"`
}

// NewRouter 创建一个 Router。
func NewRouter(llmClient llm.Client, analyzer Analyzer) *Router {
	return &Router{llmClient: llmClient, analyzer: analyzer}
}

// Handle 处理一条自然语言查询，返回给用户的最终文本。
// 路由阶段失败会返回错误；调度阶段的参数问题以固定文案作为结果返回。
func (r *Router) Handle(ctx context.Context, query string) (string, error) {
	decision, err := r.route(ctx, query)
	if err != nil {
		return "", err
	}

	if decision.AgentType == nil || *decision.AgentType != AgentTypePowerAnalysis {
		return msgUnsupported, nil
	}
	return r.dispatchPowerAnalysis(ctx, decision.AgentArgs)
}

// route 调用大模型得到路由决策。
func (r *Router) route(ctx context.Context, query string) (*Decision, error) {
	if r.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}

	prompt := strings.ReplaceAll(routingPrompt, "%QUERY%", query)
	resp, err := r.llmClient.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0})
	if err != nil {
		return nil, xerrors.Wrap(CodeRoutingFailure, err, "路由查询失败")
	}

	payload := extractJSON(resp.Text)
	decision := &Decision{}
	if err := json.Unmarshal([]byte(payload), decision); err != nil {
		return nil, xerrors.Wrap(CodeRoutingFailure, err, "路由决策不是合法 JSON")
	}
	if decision.AgentArgs == nil {
		decision.AgentArgs = map[string]any{}
	}
	return decision, nil
}

// dispatchPowerAnalysis 校验参数并调用分析执行器。
func (r *Router) dispatchPowerAnalysis(ctx context.Context, args map[string]any) (string, error) {
	week1, _ := args["week1_path"].(string)
	week2, _ := args["week2_path"].(string)

	if week1 == "" || week2 == "" {
		return msgMissingPaths, nil
	}
	if !fileExists(week1) || !fileExists(week2) {
		return msgMissingFiles, nil
	}

	result, err := r.analyzer.Execute(ctx, agent.AnalysisRequest{
		Week1Path: week1,
		Week2Path: week2,
	})
	if err != nil {
		return "", err
	}
	return result.Narrative, nil
}

// extractJSON 从大模型回复中剥离 Markdown 代码块。
// 优先取 ```json 块，其次取任意 ``` 块，否则按整段文本处理。
func extractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+len("```"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
