package service

import "strings"

// NormalizeIcon 补全图标地址，绝对地址保持不变，文件名拼接上传地址
func NormalizeIcon(icon, baseURL string) string {
	if icon == "" {
		return ""
	}
	if strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") {
		return icon
	}
	return strings.TrimRight(baseURL, "/") + "/" + icon
}

// StandardizeIcon 入库前去掉上传地址前缀，只保存文件名
func StandardizeIcon(icon, baseURL string) string {
	icon = strings.TrimSpace(icon)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return icon
	}
	if name, ok := strings.CutPrefix(icon, baseURL+"/"); ok {
		return name
	}
	return icon
}
