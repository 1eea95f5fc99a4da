package power

import (
	"fmt"
	"strconv"
	"strings"

	xerrors "PowerPulse/internal/errors"
)

// DailyAverages 保存按天平均后的统计值。
type DailyAverages struct {
	AvgDailyKWh  float64 `json:"avg_daily_kwh"`
	AvgPeakValue float64 `json:"avg_peak_value"`
}

// UsagePatterns 保存工作日与周末的用电模式。
type UsagePatterns struct {
	WeekdayAvg              float64 `json:"weekday_avg"`
	WeekendAvg              float64 `json:"weekend_avg"`
	WeekdayVsWeekendDiffPct Percent `json:"weekday_vs_weekend_diff_pct"`
}

// Summary 是对单个周期数据集的聚合结果，每次比较时重新计算，不做缓存。
type Summary struct {
	TotalEnergy   float64            `json:"total_energy"`
	DeviceTotals  map[string]float64 `json:"device_totals"`
	DailyAverages DailyAverages      `json:"daily_averages"`
	UsagePatterns UsagePatterns      `json:"usage_patterns"`
}

// Aggregate 对一周数据做全量聚合。
func Aggregate(week *WeekData) (*Summary, error) {
	if week == nil || len(week.DailyUsage) == 0 {
		return nil, xerrors.New(CodeEmptyDataset, "")
	}

	total, err := TotalUsage(week)
	if err != nil {
		return nil, err
	}
	devices, err := DeviceBreakdown(week)
	if err != nil {
		return nil, err
	}
	averages, err := dailyAverages(week)
	if err != nil {
		return nil, err
	}
	patterns, err := UsagePatternsOf(week)
	if err != nil {
		return nil, err
	}

	return &Summary{
		TotalEnergy:   total,
		DeviceTotals:  devices,
		DailyAverages: averages,
		UsagePatterns: patterns,
	}, nil
}

// TotalUsage 返回整周的总用电量。
func TotalUsage(week *WeekData) (float64, error) {
	var total float64
	for i := range week.DailyUsage {
		rec := &week.DailyUsage[i]
		if field := rec.missingField(); field != "" {
			return 0, missingFieldError(i, field)
		}
		total += rec.TotalKWh
	}
	return total, nil
}

// DeviceBreakdown 返回按设备类别累计的用电量。
// 某天缺席的设备按 0 计入，结果键是所有出现过的设备名的并集。
func DeviceBreakdown(week *WeekData) (map[string]float64, error) {
	totals := make(map[string]float64)
	for i := range week.DailyUsage {
		rec := &week.DailyUsage[i]
		if field := rec.missingField(); field != "" {
			return nil, missingFieldError(i, field)
		}
		for device, usage := range rec.Devices {
			totals[device] += usage
		}
	}
	return totals, nil
}

func dailyAverages(week *WeekData) (DailyAverages, error) {
	numDays := len(week.DailyUsage)
	var totalKWh, totalPeak float64
	for i := range week.DailyUsage {
		rec := &week.DailyUsage[i]
		if field := rec.missingField(); field != "" {
			return DailyAverages{}, missingFieldError(i, field)
		}
		totalKWh += rec.TotalKWh
		totalPeak += rec.PeakValue
	}
	return DailyAverages{
		AvgDailyKWh:  totalKWh / float64(numDays),
		AvgPeakValue: totalPeak / float64(numDays),
	}, nil
}

// UsagePatternsOf 按固定的日序启发式把记录划分为工作日与周末并求均值。
// 启发式：取 date 中最后一个以 "-" 分隔的数字段，模 7 余 3 或 4 视为周末。
// 这不是真实的星期判断，为保持输出兼容而原样保留。
func UsagePatternsOf(week *WeekData) (UsagePatterns, error) {
	var weekday, weekend []float64
	for i := range week.DailyUsage {
		rec := &week.DailyUsage[i]
		if field := rec.missingField(); field != "" {
			return UsagePatterns{}, missingFieldError(i, field)
		}
		isWeekend, err := weekendByDayIndex(rec.Date)
		if err != nil {
			return UsagePatterns{}, err
		}
		if isWeekend {
			weekend = append(weekend, rec.TotalKWh)
		} else {
			weekday = append(weekday, rec.TotalKWh)
		}
	}

	weekdayAvg := mean(weekday)
	weekendAvg := mean(weekend)

	// 没有工作日记录时分母取 1，避免除零。有记录但均值恰为 0 时
	// 不做兜底，百分比会是 NaN 或 ±Inf，由 Percent 序列化兜住。
	denominator := weekdayAvg
	if len(weekday) == 0 {
		denominator = 1
	}

	return UsagePatterns{
		WeekdayAvg:              weekdayAvg,
		WeekendAvg:              weekendAvg,
		WeekdayVsWeekendDiffPct: Percent((weekdayAvg - weekendAvg) / denominator * 100),
	}, nil
}

func weekendByDayIndex(date string) (bool, error) {
	parts := strings.Split(date, "-")
	if len(parts) < 3 {
		return false, xerrors.New(CodeBadDate, fmt.Sprintf("日期 %q 不是 YYYY-MM-DD 形式", date))
	}
	dayIndex, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return false, xerrors.Wrap(CodeBadDate, err, fmt.Sprintf("日期 %q 的日序段不是数字", date))
	}
	rem := dayIndex % 7
	return rem == 3 || rem == 4, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func missingFieldError(index int, field string) *xerrors.Error {
	return xerrors.New(CodeMissingField,
		fmt.Sprintf("第 %d 条记录缺少 %s 字段", index+1, field),
		xerrors.WithMetadata("field", field),
	)
}
