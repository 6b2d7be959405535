package utils

import (
	"encoding/json"
	"strings"

	"k8s.io/klog/v2"
)

// ExtractJSON 从文本中提取第一个完整的 JSON 对象
// 跳过字符串字面量中的花括号；找不到时返回原始内容
func ExtractJSON(content string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range content {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				return content[start : i+1]
			}
		}
	}

	return content
}

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return ""
	}
	return string(jsonData)
}

// StripCodeFence 去掉 ``` 代码块包裹，返回第一个代码块内的内容
// 没有代码块时返回去除首尾空白的原始内容
func StripCodeFence(content string) string {
	const fence = "```"
	start := strings.Index(content, fence)
	if start < 0 {
		return strings.TrimSpace(content)
	}
	rest := content[start+len(fence):]
	// 跳过语言标识所在的行
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		return strings.TrimSpace(content)
	}
	end := strings.Index(rest, fence)
	if end < 0 {
		klog.V(6).Infof("[StripCodeFence] 代码块未闭合，返回剩余内容")
		return strings.TrimRight(rest, " \r\n\t")
	}
	return strings.TrimRight(rest[:end], " \r\n\t")
}
