package domain

// ResourceAnswer 单个资源的答案文本
type ResourceAnswer struct {
	Resource Resource `json:"resource"`
	Label    string   `json:"label"`
	Text     string   `json:"text"`
}

// AnswerError 资源级别的错误记录
type AnswerError struct {
	Resource Resource  `json:"resource"`
	Tool     ToolKind  `json:"tool"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// AggregatedAnswer 一次运行的最终答案
// Answers 按资源选择顺序排列，发布后不再修改
type AggregatedAnswer struct {
	Answers   []ResourceAnswer `json:"answers"`
	Reasoning string           `json:"reasoning"`
	ToolsUsed []ToolKind       `json:"tools_used"`
	Resources []Resource       `json:"resources"`
	Errors    []AnswerError    `json:"errors"`
}

// Text 查找资源对应的答案文本
func (a *AggregatedAnswer) Text(r Resource) (string, bool) {
	if a == nil {
		return "", false
	}
	for _, ans := range a.Answers {
		if ans.Resource == r {
			return ans.Text, true
		}
	}
	return "", false
}

// ErrorsFor 返回资源对应的错误
func (a *AggregatedAnswer) ErrorsFor(r Resource) []AnswerError {
	if a == nil {
		return nil
	}
	var out []AnswerError
	for _, e := range a.Errors {
		if e.Resource == r {
			out = append(out, e)
		}
	}
	return out
}

// UsedTool 是否使用过指定工具
func (a *AggregatedAnswer) UsedTool(k ToolKind) bool {
	if a == nil {
		return false
	}
	for _, t := range a.ToolsUsed {
		if t == k {
			return true
		}
	}
	return false
}
