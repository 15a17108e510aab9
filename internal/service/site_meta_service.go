package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
)

const (
	defaultMetaTimeout   = 10 * time.Second
	defaultMetaUserAgent = "Mozilla/5.0 (compatible; StartPage/1.0)"
	// 只读取页面开头部分
	maxMetaBodySize = 2 << 20
)

// SiteMetaService 抓取网站标题、描述和图标，用于预填表单
type SiteMetaService struct {
	client    *http.Client
	userAgent string
}

// NewSiteMetaService 创建网站元信息服务
func NewSiteMetaService(cfg *config.MetaConfig) *SiteMetaService {
	timeout := defaultMetaTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultMetaUserAgent
	}
	return &SiteMetaService{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch 抓取页面元信息
func (s *SiteMetaService) Fetch(ctx context.Context, rawURL string) (*dto.SiteMetaResponse, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") || pageURL.Host == "" {
		return nil, apperr.BadRequest("无效的网址")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), http.NoBody)
	if err != nil {
		return nil, apperr.BadRequest("无效的网址")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.BadRequest(fmt.Sprintf("无法访问该网址: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.BadRequest(fmt.Sprintf("网址返回状态码 %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxMetaBodySize))
	if err != nil {
		return nil, apperr.BadRequest("解析页面失败")
	}

	// 跳转后以最终地址解析相对路径
	finalURL := resp.Request.URL
	return &dto.SiteMetaResponse{
		URL:         finalURL.String(),
		Title:       extractTitle(doc, finalURL),
		Description: extractDescription(doc),
		Icon:        extractIcon(doc, finalURL),
	}, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// extractTitle 标题优先级 og:title > title > 域名
func extractTitle(doc *goquery.Document, pageURL *url.URL) string {
	if title := metaContent(doc, "meta[property='og:title']"); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return pageURL.Host
}

func extractDescription(doc *goquery.Document) string {
	if description := metaContent(doc, "meta[name='description']"); description != "" {
		return description
	}
	return metaContent(doc, "meta[property='og:description']")
}

// extractIcon 查找页面声明的图标，没有时使用 /favicon.ico
func extractIcon(doc *goquery.Document, pageURL *url.URL) string {
	var href string
	doc.Find("link[rel]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		rel := strings.ToLower(sel.AttrOr("rel", ""))
		for _, token := range strings.Fields(rel) {
			if token == "icon" || token == "apple-touch-icon" {
				href = strings.TrimSpace(sel.AttrOr("href", ""))
				return href == ""
			}
		}
		return true
	})

	if href == "" {
		href = "/favicon.ico"
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return pageURL.ResolveReference(ref).String()
}
