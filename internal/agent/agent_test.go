package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	xerrors "PowerPulse/internal/errors"
	"PowerPulse/internal/knowledge"
	"PowerPulse/internal/llm"
	"PowerPulse/internal/power"
	"PowerPulse/internal/storage/mysql"
)

type stubLLM struct {
	lastRequest llm.Request
	response    string
	err         error
	delay       time.Duration
}

func (s *stubLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.lastRequest = req
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.response}, nil
}

func writeWeek(t *testing.T, dir, name string, days []power.DayUsage) string {
	t.Helper()
	payload := map[string]any{"daily_usage": days}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("序列化周数据失败: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("写入周数据失败: %v", err)
	}
	return path
}

func testDays(totalKWh float64) []power.DayUsage {
	days := make([]power.DayUsage, 0, 7)
	for i := 1; i <= 7; i++ {
		days = append(days, power.DayUsage{
			Date:      fmt.Sprintf("2024-05-%02d", i),
			TotalKWh:  totalKWh,
			PeakValue: totalKWh / 4,
			Devices:   map[string]float64{"fridge": totalKWh / 2, "heater": totalKWh / 2},
		})
	}
	return days
}

func newRepo(t *testing.T, dir string) *mysql.MemoryAnalysisRepository {
	t.Helper()
	repo, err := mysql.NewMemoryAnalysisRepository(dir)
	if err != nil {
		t.Fatalf("创建内存仓库失败: %v", err)
	}
	return repo
}

func TestAgentExecuteSuccess(t *testing.T) {
	dir := t.TempDir()
	week1 := writeWeek(t, dir, "week1.json", testDays(10))
	week2 := writeWeek(t, dir, "week2.json", testDays(12))

	client := &stubLLM{response: "usage rose by 20 percent"}
	repo := newRepo(t, dir)

	ag := New(client, repo)
	result, err := ag.Execute(context.Background(), AnalysisRequest{
		Week1Path: week1,
		Week2Path: week2,
	})
	if err != nil {
		t.Fatalf("执行分析失败: %v", err)
	}
	if result.Narrative != "usage rose by 20 percent" {
		t.Fatalf("叙述不符合预期: %s", result.Narrative)
	}
	if result.Report == nil {
		t.Fatal("结果缺少对比报告")
	}
	if got := float64(result.Report.TotalUsage.ChangePct); got != 20 {
		t.Fatalf("总用电变化率应为 20, 实际 %v", got)
	}
	if !strings.Contains(client.lastRequest.Prompt, "comparison data") {
		t.Fatalf("提示词缺少对比数据段: %s", client.lastRequest.Prompt)
	}
	if client.lastRequest.Temperature != 0.1 {
		t.Fatalf("叙述温度应为 0.1, 实际 %v", client.lastRequest.Temperature)
	}

	records, err := repo.ListLatest(context.Background(), 10)
	if err != nil {
		t.Fatalf("查询分析记录失败: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("应保存 1 条记录, 实际 %d", len(records))
	}
	if records[0].Week1Path != week1 {
		t.Fatalf("记录的 week1 路径不符: %s", records[0].Week1Path)
	}
}

func TestAgentExecuteMissingFile(t *testing.T) {
	dir := t.TempDir()
	week2 := writeWeek(t, dir, "week2.json", testDays(12))

	ag := New(&stubLLM{response: "unused"}, newRepo(t, dir))
	_, err := ag.Execute(context.Background(), AnalysisRequest{
		Week1Path: filepath.Join(dir, "absent.json"),
		Week2Path: week2,
	})
	if err == nil {
		t.Fatal("缺失文件应返回错误")
	}
	if xerrors.CodeOf(err) != power.CodeDataUnreadable {
		t.Fatalf("错误码不符: %v", xerrors.CodeOf(err))
	}
}

func TestAgentExecuteTimeout(t *testing.T) {
	dir := t.TempDir()
	week1 := writeWeek(t, dir, "week1.json", testDays(10))
	week2 := writeWeek(t, dir, "week2.json", testDays(12))

	client := &stubLLM{response: "late", delay: 200 * time.Millisecond}
	ag := New(client, newRepo(t, dir),
		WithLLMTimeout(20*time.Millisecond))

	_, err := ag.Execute(context.Background(), AnalysisRequest{
		Week1Path: week1,
		Week2Path: week2,
	})
	if err == nil {
		t.Fatal("超时应返回错误")
	}
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("错误码应为超时, 实际 %v", xerrors.CodeOf(err))
	}
}

func TestAgentExecuteEmptyPaths(t *testing.T) {
	ag := New(&stubLLM{}, nil)
	_, err := ag.Execute(context.Background(), AnalysisRequest{})
	if err == nil {
		t.Fatal("缺少路径应返回错误")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("错误码不符: %v", xerrors.CodeOf(err))
	}
}

func TestAgentPromptIncludesKnowledgeAndHistory(t *testing.T) {
	dir := t.TempDir()
	week1 := writeWeek(t, dir, "week1.json", testDays(10))
	week2 := writeWeek(t, dir, "week2.json", testDays(12))

	repo := newRepo(t, dir)
	if err := repo.Save(context.Background(), mysql.AnalysisRecord{
		Week1Path: "old1.json",
		Week2Path: "old2.json",
		Narrative: "heater dominated the winter weeks",
		CreatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatalf("预置历史记录失败: %v", err)
	}

	provider := knowledge.NewStaticProvider([]knowledge.Snippet{
		{
			Title:    "Fridge maintenance",
			Content:  "Clean the condenser coils twice a year.",
			Keywords: []string{"fridge"},
		},
	}, 3)

	client := &stubLLM{response: "ok"}
	ag := New(client, repo, WithKnowledgeProvider(provider))
	if _, err := ag.Execute(context.Background(), AnalysisRequest{
		Week1Path: week1,
		Week2Path: week2,
	}); err != nil {
		t.Fatalf("执行分析失败: %v", err)
	}

	prompt := client.lastRequest.Prompt
	if !strings.Contains(prompt, "Previous analyses") {
		t.Fatalf("提示词缺少历史段: %s", prompt)
	}
	if !strings.Contains(prompt, "heater dominated") {
		t.Fatalf("提示词缺少历史叙述: %s", prompt)
	}
	if !strings.Contains(prompt, "Fridge maintenance") {
		t.Fatalf("提示词缺少知识段: %s", prompt)
	}
}
