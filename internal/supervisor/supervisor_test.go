package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"PowerPulse/internal/agent"
	xerrors "PowerPulse/internal/errors"
	"PowerPulse/internal/llm"
)

type stubLLM struct {
	lastPrompt string
	response   string
	err        error
}

func (s *stubLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.lastPrompt = req.Prompt
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.response}, nil
}

type stubAnalyzer struct {
	lastRequest agent.AnalysisRequest
	narrative   string
	err         error
}

func (s *stubAnalyzer) Execute(_ context.Context, req agent.AnalysisRequest) (*agent.AnalysisResult, error) {
	s.lastRequest = req
	if s.err != nil {
		return nil, s.err
	}
	return &agent.AnalysisResult{Narrative: s.narrative}, nil
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(`{"daily_usage": []}`), 0o644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}
	return path
}

func routingResponse(week1, week2 string) string {
	return fmt.Sprintf("```json\n{\"agent_type\": \"power_analysis\", \"agent_args\": {\"week1_path\": %q, \"week2_path\": %q}}\n```", week1, week2)
}

func TestRouterDispatchesPowerAnalysis(t *testing.T) {
	dir := t.TempDir()
	week1 := touch(t, dir, "week1.json")
	week2 := touch(t, dir, "week2.json")

	client := &stubLLM{response: routingResponse(week1, week2)}
	analyzer := &stubAnalyzer{narrative: "usage went up"}
	router := NewRouter(client, analyzer)

	result, err := router.Handle(context.Background(), "compare week1.json and week2.json")
	if err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}
	if result != "usage went up" {
		t.Fatalf("结果不符: %s", result)
	}
	if analyzer.lastRequest.Week1Path != week1 || analyzer.lastRequest.Week2Path != week2 {
		t.Fatalf("执行器收到的路径不符: %+v", analyzer.lastRequest)
	}
}

func TestRouterUnsupportedQuery(t *testing.T) {
	client := &stubLLM{response: "{\"agent_type\": null, \"agent_args\": {}}"}
	router := NewRouter(client, &stubAnalyzer{})

	result, err := router.Handle(context.Background(), "what's the weather like?")
	if err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}
	if result != msgUnsupported {
		t.Fatalf("应返回兜底文案, 实际: %s", result)
	}
}

func TestRouterMissingPaths(t *testing.T) {
	client := &stubLLM{response: "```json\n{\"agent_type\": \"power_analysis\", \"agent_args\": {}}\n```"}
	router := NewRouter(client, &stubAnalyzer{})

	result, err := router.Handle(context.Background(), "analyze my power usage")
	if err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}
	if result != msgMissingPaths {
		t.Fatalf("应提示缺少路径, 实际: %s", result)
	}
}

func TestRouterNonexistentFiles(t *testing.T) {
	client := &stubLLM{response: routingResponse("/no/such/week1.json", "/no/such/week2.json")}
	router := NewRouter(client, &stubAnalyzer{})

	result, err := router.Handle(context.Background(), "analyze those files")
	if err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}
	if result != msgMissingFiles {
		t.Fatalf("应提示文件不存在, 实际: %s", result)
	}
}

func TestRouterMalformedDecision(t *testing.T) {
	client := &stubLLM{response: "I think you should use the power analysis agent."}
	router := NewRouter(client, &stubAnalyzer{})

	_, err := router.Handle(context.Background(), "analyze my power usage")
	if err == nil {
		t.Fatal("无法解析的决策应返回错误")
	}
	if xerrors.CodeOf(err) != CodeRoutingFailure {
		t.Fatalf("错误码不符: %v", xerrors.CodeOf(err))
	}
}

func TestRouterLLMFailure(t *testing.T) {
	client := &stubLLM{err: errors.New("upstream unavailable")}
	router := NewRouter(client, &stubAnalyzer{})

	_, err := router.Handle(context.Background(), "analyze my power usage")
	if err == nil {
		t.Fatal("大模型失败应返回错误")
	}
	if xerrors.CodeOf(err) != CodeRoutingFailure {
		t.Fatalf("错误码不符: %v", xerrors.CodeOf(err))
	}
}

func TestRouterAnalyzerFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	week1 := touch(t, dir, "week1.json")
	week2 := touch(t, dir, "week2.json")

	analyzerErr := xerrors.New(xerrors.CodeExecutorFailure, "叙述失败")
	client := &stubLLM{response: routingResponse(week1, week2)}
	router := NewRouter(client, &stubAnalyzer{err: analyzerErr})

	_, err := router.Handle(context.Background(), "compare the weeks")
	if err == nil {
		t.Fatal("执行器失败应向上传播")
	}
	if xerrors.CodeOf(err) != xerrors.CodeExecutorFailure {
		t.Fatalf("错误码不符: %v", xerrors.CodeOf(err))
	}
}

func TestExtractJSONPrecedence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"json 代码块", "text before\n```json\n{\"a\": 1}\n```\ntext after", "{\"a\": 1}"},
		{"普通代码块", "```\n{\"a\": 2}\n```", "{\"a\": 2}"},
		{"裸文本", "  {\"a\": 3}  ", "{\"a\": 3}"},
		{"未闭合代码块", "```json\n{\"a\": 4}", "{\"a\": 4}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSON(tc.in); got != tc.want {
				t.Fatalf("提取结果不符: %q", got)
			}
		})
	}
}

func TestRouterPromptContainsQuery(t *testing.T) {
	client := &stubLLM{response: "{\"agent_type\": null, \"agent_args\": {}}"}
	router := NewRouter(client, &stubAnalyzer{})

	if _, err := router.Handle(context.Background(), "my unique query marker"); err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}
	if !strings.Contains(client.lastPrompt, "my unique query marker") {
		t.Fatalf("提示词未包含用户查询: %s", client.lastPrompt)
	}
}
