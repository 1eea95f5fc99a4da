package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"PowerPulse/internal/catalog"
	xerrors "PowerPulse/internal/errors"
	"PowerPulse/internal/knowledge"
	"PowerPulse/internal/llm"
	"PowerPulse/internal/power"
	"PowerPulse/internal/storage/mysql"
)

// AnalysisRequest 描述一次两周对比分析任务。
type AnalysisRequest struct {
	ID        string         `json:"id,omitempty"`
	Week1Path string         `json:"week1_path"`
	Week2Path string         `json:"week2_path"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AnalysisResult 汇总对比计算与大模型叙述得到的结果。
type AnalysisResult struct {
	Week1Path    string                  `json:"week1_path"`
	Week2Path    string                  `json:"week2_path"`
	Narrative    string                  `json:"narrative"`
	Report       *power.ComparisonReport `json:"report"`
	Observations string                  `json:"observations"`
	CreatedAt    int64                   `json:"created_at"`
}

// Agent 协调数据加载、对比计算与大模型叙述，是系统的业务核心。
type Agent struct {
	llmClient   llm.Client
	repository  mysql.AnalysisRepository
	knowledge   knowledge.Provider
	catalog     catalog.DeviceDefinitions
	memoryDepth int
	llmTimeout  time.Duration
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// defaultMemoryDepth 是构建提示词时可参考的历史分析数量的默认值。
const defaultMemoryDepth = 3

// WithMemoryDepth 设置构建提示词时可参考的历史分析数量。
func WithMemoryDepth(depth int) Option {
	return func(a *Agent) {
		a.memoryDepth = depth
	}
}

// WithKnowledgeProvider 配置知识库，用于在叙述前补充节能提示。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(a *Agent) {
		a.knowledge = provider
	}
}

// WithCatalog 配置设备目录，把设备名展开成检索词。
func WithCatalog(defs catalog.DeviceDefinitions) Option {
	return func(a *Agent) {
		a.catalog = defs
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// New 创建一个 Agent。
func New(llmClient llm.Client, repo mysql.AnalysisRepository, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:   llmClient,
		repository:  repo,
		memoryDepth: defaultMemoryDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.memoryDepth < 0 {
		ag.memoryDepth = defaultMemoryDepth
	}
	return ag
}

// analysisInstructions 是叙述调用的系统提示词，沿用既有的分析维度。
const analysisInstructions = `You are an expert energy analyst specialized in analyzing power usage data.
Your task is to analyze the power usage data from two different weeks and provide a thorough analysis.

Provide a comprehensive analysis that includes:
1. Overall trends in total power usage
2. Device-specific usage changes
3. Weekday vs weekend patterns
4. Peak usage time patterns
5. Noteworthy anomalies or changes
6. Potential optimization recommendations based on the observed patterns

Your analysis should be data-driven, highlighting percentages and specific numbers where relevant.
Format your response in a clear, professional manner with appropriate sections and bullet points when listing multiple items.`

// Execute 执行完整的分析流水线：加载、对比、叙述、落库。
// 任一阶段失败都会中止整次调用，不产生部分结果。
func (a *Agent) Execute(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if a.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if strings.TrimSpace(req.Week1Path) == "" || strings.TrimSpace(req.Week2Path) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "必须提供两周数据文件路径")
	}

	week1, err := power.Load(req.Week1Path)
	if err != nil {
		return nil, err
	}
	week2, err := power.Load(req.Week2Path)
	if err != nil {
		return nil, err
	}

	report, err := power.Compare(week1, week2)
	if err != nil {
		return nil, err
	}
	reportText, err := report.Render()
	if err != nil {
		return nil, err
	}

	historySection, historyObservation := a.loadHistory(ctx)
	knowledgeSection, knowledgeObservation := a.collectKnowledge(report)
	observations := appendObservation(historyObservation, knowledgeObservation)

	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}

	output, err := a.llmClient.Generate(llmCtx, llm.Request{
		Instructions: analysisInstructions,
		Prompt:       buildAnalysisPrompt(reportText, historySection, knowledgeSection),
		Temperature:  0.1,
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型叙述超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型叙述失败")
	}

	now := time.Now().Unix()
	result := &AnalysisResult{
		Week1Path:    req.Week1Path,
		Week2Path:    req.Week2Path,
		Narrative:    output.Text,
		Report:       report,
		Observations: observations,
		CreatedAt:    now,
	}

	if a.repository != nil {
		record := mysql.AnalysisRecord{
			Week1Path: req.Week1Path,
			Week2Path: req.Week2Path,
			Narrative: result.Narrative,
			Report:    reportText,
			CreatedAt: now,
		}
		if err := a.repository.Save(ctx, record); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存分析记录失败")
		}
	}

	return result, nil
}

// ListHistory 获取最近的分析记录。
func (a *Agent) ListHistory(ctx context.Context, limit int) ([]AnalysisResult, error) {
	if a.repository == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置分析仓库")
	}

	records, err := a.repository.ListLatest(ctx, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询分析记录失败")
	}

	results := make([]AnalysisResult, 0, len(records))
	for _, record := range records {
		results = append(results, AnalysisResult{
			Week1Path: record.Week1Path,
			Week2Path: record.Week2Path,
			Narrative: record.Narrative,
			CreatedAt: record.CreatedAt,
		})
	}
	return results, nil
}

func buildAnalysisPrompt(reportText, historySection, knowledgeSection string) string {
	var builder strings.Builder
	builder.WriteString("Here is the comparison data between the two weeks:\n")
	builder.WriteString(reportText)
	builder.WriteString("\n")
	if historySection != "" {
		builder.WriteString("\n## Previous analyses for context\n")
		builder.WriteString(historySection)
	}
	if knowledgeSection != "" {
		builder.WriteString("\n## Reference notes\n")
		builder.WriteString(knowledgeSection)
	}
	return builder.String()
}

// loadHistory 加载历史分析的摘要，供提示词参考。
func (a *Agent) loadHistory(ctx context.Context) (string, string) {
	if a.repository == nil || a.memoryDepth <= 0 {
		return "", ""
	}

	records, err := a.repository.ListLatest(ctx, a.memoryDepth)
	if err != nil {
		return "", fmt.Sprintf("加载历史分析失败: %v", err)
	}
	if len(records) == 0 {
		return "", ""
	}

	var builder strings.Builder
	for idx, record := range records {
		fmt.Fprintf(&builder, "[%d] %s vs %s: %s\n",
			idx+1, record.Week1Path, record.Week2Path, truncate(record.Narrative))
	}
	return builder.String(), ""
}

// collectKnowledge 根据报告涉及的设备检索节能知识。
func (a *Agent) collectKnowledge(report *power.ComparisonReport) (string, string) {
	if a.knowledge == nil {
		return "", ""
	}

	terms := a.catalog.Terms(report.DeviceNames()...)
	snippets := a.knowledge.Query(terms...)
	if len(snippets) == 0 {
		return "", ""
	}

	var builder strings.Builder
	titles := make([]string, 0, len(snippets))
	for idx, snippet := range snippets {
		if strings.TrimSpace(snippet.Title) == "" && strings.TrimSpace(snippet.Content) == "" {
			continue
		}
		fmt.Fprintf(&builder, "[%d] %s: %s\n", idx+1,
			strings.TrimSpace(snippet.Title), truncate(snippet.Content))
		if snippet.Title != "" {
			titles = append(titles, snippet.Title)
		}
	}

	observation := ""
	if len(titles) > 0 {
		observation = fmt.Sprintf("知识库提示: %s", strings.Join(titles, "；"))
	}
	return builder.String(), observation
}

// appendObservation 将新的观察结果追加到现有的观察字符串中。
func appendObservation(existing, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return next
	}
	return existing + "\n" + next
}

func truncate(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) > 160 {
		return string([]rune(text)[:160]) + "..."
	}
	return text
}
