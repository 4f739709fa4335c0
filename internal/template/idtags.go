package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultIdTag 模板未提供标签池时ATG使用的固定标签
const DefaultIdTag = "SIMULATOR00"

// LoadIdTags 读取授权标签池文件，格式为JSON字符串数组
// 空白项被剔除；文件存在但池为空视为配置错误
func LoadIdTags(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read id tags file %s: %w", path, err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse id tags file %s: %w", path, err)
	}

	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("id tags file %s contains no usable tags", path)
	}
	return tags, nil
}
