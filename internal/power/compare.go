package power

import (
	"encoding/json"
	"math"

	xerrors "PowerPulse/internal/errors"
)

// UsageDelta 描述某个指标在两周之间的变化。
type UsageDelta struct {
	Week1     float64 `json:"week1"`
	Week2     float64 `json:"week2"`
	Change    float64 `json:"change"`
	ChangePct Percent `json:"change_pct"`
}

// ComparisonReport 是两周数据对比的结构化结果。
// 它是两个 WeekData 的纯函数，没有副作用，可以在独立输入上并发调用。
type ComparisonReport struct {
	TotalUsage    UsageDelta            `json:"total_usage"`
	DeviceChanges map[string]UsageDelta `json:"device_changes"`
	Week1Patterns UsagePatterns         `json:"week1_patterns"`
	Week2Patterns UsagePatterns         `json:"week2_patterns"`
}

// Compare 对比两周的用电数据。
//
// 百分比的除零语义在三处刻意不同，保持与既有输出兼容：
// 总量百分比不做保护（week1 总量为 0 时按浮点语义得到 ±Inf/NaN）；
// 设备级百分比在上周期为 0 时显式取正无穷哨兵；
// 工作日/周末百分比在聚合阶段用分母 1 兜底。
func Compare(week1, week2 *WeekData) (*ComparisonReport, error) {
	if week1 == nil || week2 == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "对比需要两周数据")
	}

	total1, err := TotalUsage(week1)
	if err != nil {
		return nil, err
	}
	total2, err := TotalUsage(week2)
	if err != nil {
		return nil, err
	}

	devices1, err := DeviceBreakdown(week1)
	if err != nil {
		return nil, err
	}
	devices2, err := DeviceBreakdown(week2)
	if err != nil {
		return nil, err
	}

	patterns1, err := UsagePatternsOf(week1)
	if err != nil {
		return nil, err
	}
	patterns2, err := UsagePatternsOf(week2)
	if err != nil {
		return nil, err
	}

	deviceChanges := make(map[string]UsageDelta, len(devices1)+len(devices2))
	for device := range devices1 {
		deviceChanges[device] = deviceDelta(devices1[device], devices2[device])
	}
	for device := range devices2 {
		if _, ok := deviceChanges[device]; !ok {
			deviceChanges[device] = deviceDelta(devices1[device], devices2[device])
		}
	}

	return &ComparisonReport{
		TotalUsage: UsageDelta{
			Week1:     total1,
			Week2:     total2,
			Change:    total2 - total1,
			ChangePct: Percent((total2 - total1) / total1 * 100),
		},
		DeviceChanges: deviceChanges,
		Week1Patterns: patterns1,
		Week2Patterns: patterns2,
	}, nil
}

func deviceDelta(usage1, usage2 float64) UsageDelta {
	pct := Percent(math.Inf(1))
	if usage1 != 0 {
		pct = Percent((usage2 - usage1) / usage1 * 100)
	}
	return UsageDelta{
		Week1:     usage1,
		Week2:     usage2,
		Change:    usage2 - usage1,
		ChangePct: pct,
	}
}

// Render 把对比报告序列化为缩进 JSON 文本，供提示词模板嵌入。
func (r *ComparisonReport) Render() (string, error) {
	encoded, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "序列化对比报告失败")
	}
	return string(encoded), nil
}

// DeviceNames 返回报告中涉及的设备名，供知识库检索使用。
func (r *ComparisonReport) DeviceNames() []string {
	names := make([]string, 0, len(r.DeviceChanges))
	for name := range r.DeviceChanges {
		names = append(names, name)
	}
	return names
}
