package dto

// UploadResponse 上传响应
type UploadResponse struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}
