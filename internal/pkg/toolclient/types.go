package toolclient

// SearchRequest AI 搜索
type SearchRequest struct {
	SpaceKey   string   `json:"space_key"`
	PageTitles []string `json:"page_titles"`
	Query      string   `json:"query"`
}

type SearchResponse struct {
	Response string `json:"response"`
}

// CodeRequest 代码助手
type CodeRequest struct {
	SpaceKey       string `json:"space_key"`
	PageTitle      string `json:"page_title"`
	Instruction    string `json:"instruction"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type CodeResponse struct {
	Summary       string `json:"summary"`
	OriginalCode  string `json:"original_code"`
	ModifiedCode  string `json:"modified_code,omitempty"`
	ConvertedCode string `json:"converted_code,omitempty"`
}

// Best 选择最终代码：指定目标语言时优先转换结果，其次修改结果，最后原始代码
func (r *CodeResponse) Best(targetLanguage string) string {
	if r == nil {
		return ""
	}
	if targetLanguage != "" && r.ConvertedCode != "" {
		return r.ConvertedCode
	}
	if r.ModifiedCode != "" {
		return r.ModifiedCode
	}
	return r.OriginalCode
}

// VideoRequest 视频摘要
type VideoRequest struct {
	SpaceKey  string `json:"space_key"`
	PageTitle string `json:"page_title"`
}

type VideoResponse struct {
	Summary    string   `json:"summary"`
	Quotes     []string `json:"quotes,omitempty"`
	Timestamps []string `json:"timestamps,omitempty"`
}

// ImpactRequest 影响分析：对比两个页面
type ImpactRequest struct {
	SpaceKey     string `json:"space_key"`
	OldPageTitle string `json:"old_page_title"`
	NewPageTitle string `json:"new_page_title"`
	Question     string `json:"question,omitempty"`
}

type ImpactResponse struct {
	ImpactAnalysis string `json:"impact_analysis"`
}

// ChartRequest 图表构建
type ChartRequest struct {
	SpaceKey  string `json:"space_key"`
	PageTitle string `json:"page_title"`
	ImageURL  string `json:"image_url"`
	ChartType string `json:"chart_type"`
}

type ChartResponse struct {
	ChartData string `json:"chart_data"`
}

// TestRequest 测试策略
type TestRequest struct {
	SpaceKey      string `json:"space_key"`
	CodePageTitle string `json:"code_page_title"`
	Question      string `json:"question,omitempty"`
}

type TestResponse struct {
	TestStrategy string `json:"test_strategy"`
}

// ImageRequest 图片洞察
type ImageRequest struct {
	SpaceKey  string `json:"space_key"`
	PageTitle string `json:"page_title"`
	ImageURL  string `json:"image_url"`
}

type ImageResponse struct {
	Summary string `json:"summary"`
}

// Space 空间
type Space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type spacesResponse struct {
	Spaces []Space `json:"spaces"`
}

type pagesResponse struct {
	Pages []string `json:"pages"`
}

type imagesResponse struct {
	Images []string `json:"images"`
}

// errorBody 工具后端的错误响应
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (b errorBody) message() string {
	if b.Detail != "" {
		return b.Detail
	}
	return b.Error
}
