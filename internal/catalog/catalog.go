// Package catalog 维护设备类别的静态定义。定义以 YAML 文件提供
// （configs/devices.yaml），为报告叙述和知识库检索补充人类可读的标签。
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeviceDefinitions models the structure of configs/devices.yaml.
type DeviceDefinitions struct {
	Devices map[string]DeviceDefinition `yaml:"devices"`
}

// DeviceDefinition describes a single device category.
type DeviceDefinition struct {
	Label        string   `yaml:"label"`
	Category     string   `yaml:"category"`
	TypicalShare float64  `yaml:"typical_share"`
	Aliases      []string `yaml:"aliases"`
	Description  string   `yaml:"description"`
}

// LoadDeviceDefinitions parses the YAML file containing device metadata.
// An empty path yields an empty catalog rather than an error.
func LoadDeviceDefinitions(path string) (DeviceDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return DeviceDefinitions{Devices: map[string]DeviceDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return DeviceDefinitions{}, fmt.Errorf("读取设备目录失败: %w", err)
	}

	var defs DeviceDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return DeviceDefinitions{}, fmt.Errorf("解析设备目录失败: %w", err)
	}
	if defs.Devices == nil {
		defs.Devices = map[string]DeviceDefinition{}
	}
	return defs, nil
}

// Label 返回设备的可读标签，未登记的设备原样返回名称。
func (d DeviceDefinitions) Label(name string) string {
	if def, ok := d.lookup(name); ok && strings.TrimSpace(def.Label) != "" {
		return def.Label
	}
	return name
}

// Terms 把设备名展开成检索词（名称、标签、别名），供知识库匹配。
func (d DeviceDefinitions) Terms(names ...string) []string {
	terms := make([]string, 0, len(names)*2)
	for _, name := range names {
		terms = append(terms, name)
		def, ok := d.lookup(name)
		if !ok {
			continue
		}
		if def.Label != "" {
			terms = append(terms, def.Label)
		}
		terms = append(terms, def.Aliases...)
	}
	return terms
}

func (d DeviceDefinitions) lookup(name string) (DeviceDefinition, bool) {
	if def, ok := d.Devices[name]; ok {
		return def, true
	}
	lowered := strings.ToLower(name)
	for key, def := range d.Devices {
		if strings.ToLower(key) == lowered {
			return def, true
		}
		for _, alias := range def.Aliases {
			if strings.EqualFold(alias, name) {
				return def, true
			}
		}
	}
	return DeviceDefinition{}, false
}
