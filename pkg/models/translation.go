package models

import (
	"fmt"
	"io"
	"time"
)

// SourceKind 视频来源类型
type SourceKind string

const (
	SourceUpload  SourceKind = "upload"
	SourceURL     SourceKind = "url"
	SourceYouTube SourceKind = "youtube"
)

// UploadedFile 客户端上传的文件
type UploadedFile struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// TranslationRequest 一次翻译请求（只在本次 HTTP 调用内存在）
type TranslationRequest struct {
	File           *UploadedFile
	VideoURL       string
	TargetLanguage string
}

// Fingerprint 缓存 key：来源标识 + 目标语言
// 注意：上传文件用 文件名+大小，而不是内容哈希，同名同大小的不同文件会冲突
func (r *TranslationRequest) Fingerprint() string {
	if r.File != nil {
		return fmt.Sprintf("translation-%s-%d-%s", r.File.Name, r.File.Size, r.TargetLanguage)
	}
	return fmt.Sprintf("translation-%s-%s", r.VideoURL, r.TargetLanguage)
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Translation string    `json:"translation"`
	VideoURL    string    `json:"video_url"` // data URI
	CreatedAt   time.Time `json:"created_at"`
}

// Expired 是否超出有效期
func (e *CacheEntry) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(e.CreatedAt) >= window
}

// HandleState 远端文件处理状态
type HandleState string

const (
	StateUploading HandleState = "uploading"
	StatePending   HandleState = "pending"
	StateReady     HandleState = "ready"
	StateFailed    HandleState = "failed"
)

// RemoteHandle 上传到 Gemini 的文件句柄
type RemoteHandle struct {
	Name     string      `json:"name"`
	URI      string      `json:"uri"`
	MIMEType string      `json:"mime_type"`
	State    HandleState `json:"state"`
}

// LocalMedia 已落盘的源视频
type LocalMedia struct {
	Path        string
	MIMEType    string
	DisplayName string
	Size        int64
	Kind        SourceKind
}

// TranslationResult 翻译结果
type TranslationResult struct {
	Translation    string `json:"result"`
	VideoURL       string `json:"videoUrl"`
	FileName       string `json:"fileName"`
	TargetLanguage string `json:"targetLanguage"`
	Cached         bool   `json:"cached,omitempty"`
}
