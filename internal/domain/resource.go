package domain

import "strings"

// Resource 一次运行的目标资源：空间 + 页面
type Resource struct {
	Workspace string `json:"space_key"`
	Page      string `json:"page_title"`
}

// Key 资源唯一标识
func (r Resource) Key() string {
	return r.Workspace + "/" + r.Page
}

func (r Resource) String() string {
	return r.Page
}

// NormalizeResources 规范化页面列表
// 去除首尾空白、丢弃空标题、按首次出现去重，保留选择顺序
func NormalizeResources(workspace string, pages []string) []Resource {
	workspace = strings.TrimSpace(workspace)
	seen := make(map[string]struct{}, len(pages))
	resources := make([]Resource, 0, len(pages))
	for _, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		if _, ok := seen[page]; ok {
			continue
		}
		seen[page] = struct{}{}
		resources = append(resources, Resource{Workspace: workspace, Page: page})
	}
	return resources
}

// ContainsResource 判断资源列表中是否存在指定资源
func ContainsResource(resources []Resource, target Resource) bool {
	for _, r := range resources {
		if r == target {
			return true
		}
	}
	return false
}
