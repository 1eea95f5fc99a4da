// Package static 提供一个不依赖网络的离线文本生成实现，
// 用于本地开发和无凭证环境。它不做任何真正的推理：
// 叙述请求被还原成对比报告的固定格式摘要，路由请求一律回答
// 无法识别，让上层走兜底分支。
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"PowerPulse/internal/llm"
	"PowerPulse/internal/power"
)

// Client 是 llm.Client 的离线实现。
type Client struct{}

// NewClient 创建离线客户端。
func NewClient() *Client {
	return &Client{}
}

// Generate 实现 llm.Client。
func (c *Client) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	if strings.Contains(req.Prompt, `"agent_type"`) {
		return &llm.Response{Text: `{"agent_type": null, "agent_args": {}}`}, nil
	}

	report, ok := extractReport(req.Prompt)
	if !ok {
		return &llm.Response{Text: "离线模式：未能在请求中找到对比报告。"}, nil
	}
	return &llm.Response{Text: renderDigest(report)}, nil
}

// extractReport 在提示词中寻找第一个 JSON 对象并尝试解码为对比报告。
func extractReport(prompt string) (*power.ComparisonReport, bool) {
	start := strings.Index(prompt, "{")
	end := strings.LastIndex(prompt, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var report power.ComparisonReport
	if err := json.Unmarshal([]byte(prompt[start:end+1]), &report); err != nil {
		return nil, false
	}
	return &report, true
}

func renderDigest(report *power.ComparisonReport) string {
	var b strings.Builder
	b.WriteString("用电对比摘要（离线生成）\n\n")
	fmt.Fprintf(&b, "总用电量：第一周 %.2f kWh，第二周 %.2f kWh，变化 %+.2f kWh（%s）。\n",
		report.TotalUsage.Week1, report.TotalUsage.Week2,
		report.TotalUsage.Change, formatPct(report.TotalUsage.ChangePct))

	if len(report.DeviceChanges) > 0 {
		b.WriteString("\n设备变化：\n")
		names := make([]string, 0, len(report.DeviceChanges))
		for name := range report.DeviceChanges {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			delta := report.DeviceChanges[name]
			fmt.Fprintf(&b, "- %s: %.2f -> %.2f kWh（%s）\n",
				name, delta.Week1, delta.Week2, formatPct(delta.ChangePct))
		}
	}

	fmt.Fprintf(&b, "\n工作日/周末模式：第一周工作日均值 %.2f、周末均值 %.2f；第二周工作日均值 %.2f、周末均值 %.2f。\n",
		report.Week1Patterns.WeekdayAvg, report.Week1Patterns.WeekendAvg,
		report.Week2Patterns.WeekdayAvg, report.Week2Patterns.WeekendAvg)
	return b.String()
}

func formatPct(p power.Percent) string {
	if !p.IsFinite() {
		return "新增"
	}
	return fmt.Sprintf("%+.1f%%", float64(p))
}

var _ llm.Client = (*Client)(nil)
