package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasMap 设备别名映射：CAN 地址 -> 人类可读名称
type AliasMap struct {
	Aliases map[int]string `yaml:"aliases"`
}

// LoadAliasMap 从 YAML 文件加载别名映射
func LoadAliasMap(path string) (*AliasMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias map: %w", err)
	}
	var m AliasMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal alias map: %w", err)
	}
	if m.Aliases == nil {
		m.Aliases = make(map[int]string)
	}
	return &m, nil
}

// Lookup 查询地址别名，未配置时返回空串
func (m *AliasMap) Lookup(addr int) string {
	if m == nil || m.Aliases == nil {
		return ""
	}
	return m.Aliases[addr]
}

// Merge 合并另一份映射，重复地址以 other 为准
func (m *AliasMap) Merge(other *AliasMap) {
	if m == nil || m.Aliases == nil || other == nil || other.Aliases == nil {
		return
	}
	for k, v := range other.Aliases {
		m.Aliases[k] = v
	}
}
