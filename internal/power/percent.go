package power

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Percent 表示一个百分比数值。设备级对比允许出现无穷大哨兵值
// （上一周期为 0 时），而 Go 的 JSON 编码器拒绝非有限浮点数，
// 因此非有限值被编码为带引号的 "Infinity" / "-Infinity" / "NaN"。
type Percent float64

// IsFinite 判断数值是否为有限值。
func (p Percent) IsFinite() bool {
	v := float64(p)
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// MarshalJSON 实现 json.Marshaler。
func (p Percent) MarshalJSON() ([]byte, error) {
	v := float64(p)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON 实现 json.Unmarshaler，接受数字或哨兵字符串。
func (p *Percent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "Infinity":
			*p = Percent(math.Inf(1))
		case "-Infinity":
			*p = Percent(math.Inf(-1))
		case "NaN":
			*p = Percent(math.NaN())
		default:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("无法解析百分比值 %q", s)
			}
			*p = Percent(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Percent(v)
	return nil
}
