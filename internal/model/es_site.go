package model

import "time"

// ESSite Elasticsearch中的网站文档
type ESSite struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	CategoryID   uint      `json:"category_id"`
	CategoryName string    `json:"category_name"`
	VisitCount   int64     `json:"visit_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// 默认索引名，可通过 elasticsearch.index 覆盖
var siteIndexName = "startpage_sites"

// SetSiteIndexName 设置网站索引名
func SetSiteIndexName(name string) {
	if name != "" {
		siteIndexName = name
	}
}

// ESIndexName 索引名
func (ESSite) ESIndexName() string {
	return siteIndexName
}

// ESMapping 索引映射
func (ESSite) ESMapping() string {
	return `{
  "mappings": {
    "properties": {
      "id":            {"type": "long"},
      "name":          {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "url":           {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 1024}}},
      "description":   {"type": "text"},
      "icon":          {"type": "keyword", "index": false},
      "category_id":   {"type": "long"},
      "category_name": {"type": "keyword"},
      "visit_count":   {"type": "long"},
      "updated_at":    {"type": "date"}
    }
  }
}`
}
