package power

import (
	"encoding/json"
	"fmt"
	"os"

	xerrors "PowerPulse/internal/errors"
)

// DayUsage 表示一条单日用电记录。
type DayUsage struct {
	Date      string
	TotalKWh  float64
	PeakValue float64
	Devices   map[string]float64

	hasDate      bool
	hasTotalKWh  bool
	hasPeakValue bool
	hasDevices   bool
}

// WeekData 表示一周的用电数据集。按照约定 daily_usage 应包含 7 条记录，
// 这一约定由调用方保证，加载阶段不做防御性校验。
type WeekData struct {
	Metadata   map[string]any `json:"metadata"`
	DailyUsage []DayUsage     `json:"daily_usage"`
}

const (
	CodeMissingField   xerrors.Code = "POWER_MISSING_FIELD"
	CodeBadDate        xerrors.Code = "POWER_BAD_DATE"
	CodeEmptyDataset   xerrors.Code = "POWER_EMPTY_DATASET"
	CodeDataUnreadable xerrors.Code = "POWER_DATA_UNREADABLE"
)

func init() {
	xerrors.Register(CodeMissingField, xerrors.Attributes{
		Message:   "usage record is missing a required field",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeBadDate, xerrors.Attributes{
		Message:   "usage record has a malformed date",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeEmptyDataset, xerrors.Attributes{
		Message:   "dataset contains no usage records",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeDataUnreadable, xerrors.Attributes{
		Message:   "usage data file is unreadable or malformed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

// UnmarshalJSON 记录每个字段是否在输入中出现，
// 以便聚合阶段能够像查表失败一样报告缺失的键。
func (d *DayUsage) UnmarshalJSON(data []byte) error {
	var aux struct {
		Date      *string             `json:"date"`
		TotalKWh  *float64            `json:"total_kwh"`
		PeakValue *float64            `json:"peak_value"`
		Devices   *map[string]float64 `json:"devices"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = DayUsage{}
	if aux.Date != nil {
		d.Date = *aux.Date
		d.hasDate = true
	}
	if aux.TotalKWh != nil {
		d.TotalKWh = *aux.TotalKWh
		d.hasTotalKWh = true
	}
	if aux.PeakValue != nil {
		d.PeakValue = *aux.PeakValue
		d.hasPeakValue = true
	}
	if aux.Devices != nil {
		d.Devices = *aux.Devices
		d.hasDevices = true
	}
	return nil
}

// MarshalJSON 输出记录的四个约定字段。
func (d DayUsage) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"date":       d.Date,
		"total_kwh":  d.TotalKWh,
		"peak_value": d.PeakValue,
		"devices":    d.Devices,
	})
}

// missingField 返回第一个缺失的必需字段名，全部存在时返回空串。
func (d *DayUsage) missingField() string {
	switch {
	case !d.hasDate:
		return "date"
	case !d.hasTotalKWh:
		return "total_kwh"
	case !d.hasPeakValue:
		return "peak_value"
	case !d.hasDevices:
		return "devices"
	}
	return ""
}

// Load 从本地 JSON 文件读取一周的用电数据。
// 文件不可读或不是合法 JSON 时返回 I/O 类错误；
// 缺少 daily_usage 键时返回查找类错误。
func Load(path string) (*WeekData, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(CodeDataUnreadable, err, fmt.Sprintf("读取用电数据文件 %s 失败", path))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, xerrors.Wrap(CodeDataUnreadable, err, fmt.Sprintf("解析用电数据文件 %s 失败", path))
	}

	usageRaw, ok := raw["daily_usage"]
	if !ok {
		return nil, xerrors.New(CodeMissingField, "数据缺少 daily_usage 字段", xerrors.WithMetadata("path", path))
	}

	week := &WeekData{}
	if metaRaw, ok := raw["metadata"]; ok {
		if err := json.Unmarshal(metaRaw, &week.Metadata); err != nil {
			return nil, xerrors.Wrap(CodeDataUnreadable, err, "解析 metadata 失败")
		}
	}
	if err := json.Unmarshal(usageRaw, &week.DailyUsage); err != nil {
		return nil, xerrors.Wrap(CodeDataUnreadable, err, "解析 daily_usage 失败")
	}
	return week, nil
}
